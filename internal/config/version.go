package config

// Version is stamped at build time with -ldflags "-X ...config.Version=v1.2.3".
var Version = "dev"
