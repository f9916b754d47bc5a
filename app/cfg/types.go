package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string
	RedisAddr         string

	// Import and enrichment
	ImportConcurrency int
	FetchTimeout      int
	UndoWindow        int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
