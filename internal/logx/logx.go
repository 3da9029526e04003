package logx

import (
	"context"

	"pkt.systems/promptdeck/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	projectKey contextKey = iota
	tabKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithProject annotates the logger with the project id if present.
func WithProject(ctx context.Context, projectID schema.ProjectID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if projectID != "" {
		if current, ok := ctx.Value(projectKey).(schema.ProjectID); ok && current == projectID {
			return log
		}
		log = log.With("project", projectID)
	}
	return log
}

// WithProjectTab annotates the logger with project and tab identifiers.
func WithProjectTab(ctx context.Context, projectID schema.ProjectID, tabID schema.TabID) pslog.Logger {
	log := WithProject(ctx, projectID)
	if tabID != "" {
		if current, ok := ctx.Value(tabKey).(schema.TabID); ok && current == tabID {
			return log
		}
		log = log.With("tab", tabID)
	}
	return log
}

// ContextWithProject stores the project marker on the context for log de-duplication.
func ContextWithProject(ctx context.Context, projectID schema.ProjectID) context.Context {
	if ctx == nil || projectID == "" {
		return ctx
	}
	return context.WithValue(ctx, projectKey, projectID)
}

// ContextWithTab stores the tab marker on the context for log de-duplication.
func ContextWithTab(ctx context.Context, tabID schema.TabID) context.Context {
	if ctx == nil || tabID == "" {
		return ctx
	}
	return context.WithValue(ctx, tabKey, tabID)
}

// ContextWithProjectLogger attaches the logger and project marker to the context.
func ContextWithProjectLogger(ctx context.Context, log pslog.Logger, projectID schema.ProjectID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithProject(ctx, projectID)
}
