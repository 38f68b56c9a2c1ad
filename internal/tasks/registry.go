package tasks

// RegisterAllTasks returns the map of all known scheduled tasks. The keys
// match the task names used in the scheduler configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	registry := map[string]ScheduledTaskFunc{
		"sql_maintenance":  newSQLMaintenanceTask(deps),
		"stale_send_audit": newStaleSendAuditTask(deps),
	}
	deps.Logger.Info("Initialized scheduled tasks", "count", len(registry))
	return registry
}
