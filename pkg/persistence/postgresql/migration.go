package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflow_definitions (
				id VARCHAR(255) NOT NULL,
				version INTEGER NOT NULL,
				nodes JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
				PRIMARY KEY (id, version)
			);

			CREATE TABLE IF NOT EXISTS executions (
				id VARCHAR(255) PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				client_id VARCHAR(255) NOT NULL,
				workflow_id VARCHAR(255) NOT NULL,
				workflow_version INTEGER NOT NULL,
				trigger_type VARCHAR(255) NOT NULL DEFAULT '',
				trigger_payload JSONB NOT NULL DEFAULT '{}',
				status VARCHAR(32) NOT NULL,
				max_actions INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_executions_tenant_status
				ON executions (tenant_id, status);

			CREATE TABLE IF NOT EXISTS execution_events (
				id VARCHAR(255) PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				execution_id VARCHAR(255) NOT NULL,
				seq BIGSERIAL,
				level VARCHAR(16) NOT NULL,
				event_type VARCHAR(255) NOT NULL,
				payload JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_execution_events_execution
				ON execution_events (execution_id, seq);

			CREATE TABLE IF NOT EXISTS credentials (
				tenant_id VARCHAR(255) NOT NULL,
				client_id VARCHAR(255) NOT NULL,
				provider VARCHAR(64) NOT NULL,
				credential_type VARCHAR(64) NOT NULL,
				encrypted_secret TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
				PRIMARY KEY (tenant_id, client_id, provider, credential_type)
			);

			CREATE TABLE IF NOT EXISTS integration_verifications (
				tenant_id VARCHAR(255) NOT NULL,
				client_id VARCHAR(255) NOT NULL,
				provider VARCHAR(64) NOT NULL,
				check_type VARCHAR(64) NOT NULL,
				status VARCHAR(32) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_verifications_lookup
				ON integration_verifications (tenant_id, client_id, provider, check_type, created_at DESC);
		`,
	}
}
