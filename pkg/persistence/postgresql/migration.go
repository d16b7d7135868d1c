package postgresql

// migrations returns the versioned schema. Counters live in dedicated columns
// so outcome updates can be single-statement increments.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id UUID PRIMARY KEY,
				organization_id UUID NOT NULL,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'draft',
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				variables JSONB NOT NULL DEFAULT '[]',
				settings JSONB NOT NULL DEFAULT '{}',
				total_executions BIGINT NOT NULL DEFAULT 0,
				successful_executions BIGINT NOT NULL DEFAULT 0,
				failed_executions BIGINT NOT NULL DEFAULT 0,
				avg_execution_time_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
				last_run_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				archived_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_organization
				ON workflows (organization_id, created_at DESC);

			CREATE TABLE IF NOT EXISTS webhooks (
				id UUID PRIMARY KEY,
				organization_id UUID NOT NULL,
				workflow_id UUID NOT NULL,
				name TEXT NOT NULL DEFAULT '',
				secret TEXT NOT NULL,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				timestamp_tolerance_sec INTEGER NOT NULL DEFAULT 0,
				max_payload_bytes BIGINT NOT NULL DEFAULT 0,
				payload_schema JSONB,
				total_requests BIGINT NOT NULL DEFAULT 0,
				successful_executions BIGINT NOT NULL DEFAULT 0,
				failed_executions BIGINT NOT NULL DEFAULT 0,
				avg_processing_time_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
				last_triggered_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_webhooks_organization
				ON webhooks (organization_id);

			CREATE TABLE IF NOT EXISTS executions (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL,
				webhook_id UUID,
				organization_id UUID NOT NULL,
				status TEXT NOT NULL DEFAULT 'running',
				input JSONB,
				output JSONB,
				error TEXT NOT NULL DEFAULT '',
				steps JSONB NOT NULL DEFAULT '[]',
				processing_time_ms BIGINT NOT NULL DEFAULT 0,
				trigger_meta JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_executions_workflow
				ON executions (organization_id, workflow_id, created_at DESC);

			CREATE TABLE IF NOT EXISTS security_violations (
				id UUID PRIMARY KEY,
				organization_id UUID NOT NULL,
				webhook_id TEXT NOT NULL DEFAULT '',
				violation_type TEXT NOT NULL,
				details JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_security_violations_organization
				ON security_violations (organization_id, created_at DESC);
		`,
	}
}
