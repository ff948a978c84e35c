package cfg

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Ingestion configuration
	ProfilesDir  string
	Once         bool
	CycleMinutes int
	WorkerCount  int
	ItemWorkers  int
	FlyerRetries int

	// Vision backend configuration
	VisionEndpoint string
	Regions        []string
	RegionQuota    int
	QuotaWindowSec int
	CooldownSec    int
	StagingURL     string

	// Translation backend configuration
	TranslateURL string
	RedisAddr    string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
