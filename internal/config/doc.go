/*
Package config holds the swotap firmware configuration.

Sources are applied in increasing precedence: compiled-in defaults from
NewDefault, a YAML file via LoadFromFile, then SWOTAP_* environment variables
via LoadFromEnv. Validate must pass before the configuration is handed to the
firmware.

The sampling trigger (5 kHz) and the edge timer rate (1 kHz) are fixed by the
acquisition design and are not configurable. The board section only records what
the clock tree was set up for, so that prescalers can be derived from it.

Example:

	global:
	  log_level: INFO
	  log_format: text
	board:
	  core_hz: 24000000
	  adc_channel: 17
	trace:
	  policy: bounded
	  spin_limit: 10000
	  breaker:
	    enabled: true
	    failure_threshold: 5
	    cooldown: 1s
	button:
	  debounce_ticks: 20
	heartbeat:
	  period: 1ms
	  report_every: 1000
*/
package config
