package constants

const (
	ConfigName   = "config"
	ConfigFormat = "yaml"
	EnvPrefix    = "WELLNESS"

	AppName = "wellness_intake"
)
