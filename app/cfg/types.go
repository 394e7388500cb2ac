package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Telegram configuration
	BotToken string

	// Application configuration
	BootstrapFile string
	Port          string
	WorkerCount   int
	SchedulerTick int
	PublisherTick int
	PublishBatch  int
	PublishRate   int
	FetchTimeout  int
	SendTimeout   int
	APIAccessKey  string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
