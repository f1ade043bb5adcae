package store

const Schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	thumbnail TEXT NOT NULL DEFAULT '',
	duration TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL,
	format TEXT NOT NULL DEFAULT '{}',
	container TEXT NOT NULL DEFAULT '',
	download_sections TEXT NOT NULL DEFAULT '',
	all_formats TEXT NOT NULL DEFAULT '[]',
	output_dir TEXT NOT NULL DEFAULT '',
	website TEXT NOT NULL DEFAULT '',
	playlist_title TEXT NOT NULL DEFAULT '',
	audio_prefs TEXT NOT NULL DEFAULT '{}',
	video_prefs TEXT NOT NULL DEFAULT '{}',
	filename_template TEXT NOT NULL DEFAULT '',
	save_thumbnail BOOLEAN NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	progress REAL NOT NULL DEFAULT 0,
	scheduled_start INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_url ON jobs(url);

CREATE TABLE IF NOT EXISTS history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	duration TEXT NOT NULL DEFAULT '',
	thumbnail TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL,
	downloaded_at INTEGER NOT NULL,
	path TEXT NOT NULL DEFAULT '',
	website TEXT NOT NULL DEFAULT '',
	format TEXT NOT NULL DEFAULT '{}',
	job_id INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_history_downloaded_at ON history(downloaded_at);

CREATE TABLE IF NOT EXISTS results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	duration TEXT NOT NULL DEFAULT '',
	thumbnail TEXT NOT NULL DEFAULT '',
	website TEXT NOT NULL DEFAULT '',
	playlist_title TEXT NOT NULL DEFAULT '',
	formats TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_results_url ON results(url);

CREATE TABLE IF NOT EXISTS command_templates (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	content TEXT NOT NULL
);
`
