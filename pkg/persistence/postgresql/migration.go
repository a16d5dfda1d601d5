package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL,
				graph JSONB,
				owner VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_owner ON workflows(owner);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);

			CREATE TABLE cities (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				domains JSONB NOT NULL DEFAULT '[]'
			);

			CREATE TABLE checks (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id),
				city_id VARCHAR(255) NOT NULL REFERENCES cities(id),
				plate_text VARCHAR(64) NOT NULL,
				status VARCHAR(50) NOT NULL,
				last_error TEXT NOT NULL DEFAULT '',
				callback_url TEXT NOT NULL DEFAULT '',
				last_run_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_checks_workflow_id ON checks(workflow_id);
			CREATE INDEX idx_checks_status ON checks(status);
			CREATE INDEX idx_checks_created_at ON checks(created_at);
		`,
		2: `
			CREATE TABLE schedules (
				id UUID PRIMARY KEY,
				check_id UUID NOT NULL REFERENCES checks(id) ON DELETE CASCADE,
				cron_expression VARCHAR(255) NOT NULL,
				next_due_at TIMESTAMP WITH TIME ZONE NOT NULL,
				active BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_schedules_check_id ON schedules(check_id);
			CREATE INDEX idx_schedules_next_due_at ON schedules(next_due_at) WHERE active;
		`,
	}
}
