// Package config loads layered configuration for mindboggle123.
//
// Values are merged from flag defaults, an optional YAML file, an optional
// .env file, prefixed environment variables and explicitly set flags, in
// increasing order of precedence. Viper performs the merge and the result is
// unmarshalled into a caller-supplied struct.
//
// # Usage
//
//	var cfg AppConfig
//	err := config.LoadConfig("mindboggle123", &cfg,
//	    config.WithConfigFile(path),
//	    config.WithEnvPrefix("MINDBOGGLE"),
//	    config.WithFlags(flags),
//	)
//
// With the MINDBOGGLE prefix, MINDBOGGLE_ANTS_NUM_THREADS sets the
// ants_num_threads key and MINDBOGGLE_LOGGING_LEVEL sets logging.level.
package config
