package app

import "time"

const (
	Name               = "advchat"
	SourceURL          = "https://git.skobk.in/skobkin/advchat"
	ConfigFilename     = "config.json"
	DBFilename         = "app.db"
	LogFilename        = "app.log"
	RecentMessagesLoad = 200

	// TickInterval is how often the runtime drains engine events.
	TickInterval = 25 * time.Millisecond
	// CompletionBuffer bounds reassembled messages waiting for the bus.
	CompletionBuffer = 16
	writerQueueSize  = 512
)
