package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE audit_logs (
				id UUID PRIMARY KEY,
				flow_id VARCHAR(255) NOT NULL,
				session_id VARCHAR(255),
				flow_kind VARCHAR(50) NOT NULL,
				action VARCHAR(50) NOT NULL,
				detail JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_audit_logs_flow_id ON audit_logs(flow_id);
			CREATE INDEX idx_audit_logs_created_at ON audit_logs(created_at);
		`,
		2: `
			CREATE INDEX idx_audit_logs_session_id ON audit_logs(session_id);
		`,
	}
}
