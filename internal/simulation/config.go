package simulation

import "time"

// Config holds the settings of a simulate CLI run.
type Config struct {
	BaseURL    string        // service to delegate to; empty runs locally
	Policy     string        // policy kind to simulate
	Campaigns  int           // number of campaigns
	Seed       uint64        // first seed of the batch
	Workers    int           // concurrent campaigns when running locally
	Timeout    time.Duration // HTTP request timeout in remote mode
	OutputFile string        // trajectory file, local mode only
	LogFile    string        // log file in addition to stdout
	LogFormat  string        // text or json
	Verbose    bool          // debug logging
}
