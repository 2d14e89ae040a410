package config

import "time"

type AppConfig struct {
	DBDriver   string        `yaml:"db_driver" env:"VIGIL_DB_DRIVER" env-default:"sqlite"`
	DBURL      string        `yaml:"db_url" env:"VIGIL_DB_URL" env-default:""`
	DBPath     string        `yaml:"db_path" env:"VIGIL_DB_PATH" env-default:"data/vigil.db"`
	ListenAddr string        `yaml:"listen_addr" env:"VIGIL_LISTEN_ADDR" env-default:"0.0.0.0:8080"`
	BaseURL    string        `yaml:"base_url" env:"VIGIL_BASE_URL" env-default:"http://localhost:8080"`
	SessionTTL time.Duration `yaml:"session_ttl" env:"VIGIL_SESSION_TTL" env-default:"3h"`
	AppEnv     string        `yaml:"app_env" env:"VIGIL_APP_ENV"`

	Incidents  IncidentsConfig  `yaml:"incidents"`
	Escalation EscalationConfig `yaml:"escalation"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
}

type IncidentsConfig struct {
	RegNoFormat string `yaml:"reg_no_format" env:"VIGIL_INCIDENTS_REG_NO_FORMAT" env-default:"INC-{year}-{seq:05}"`
}

type EscalationConfig struct {
	// DefaultMessage seeds the editable assistance message.
	// Placeholders: {step}, {incident}, {requester}.
	DefaultMessage string `yaml:"default_message" env:"VIGIL_ESCALATION_DEFAULT_MESSAGE" env-default:"{requester} needs assistance with step \"{step}\" on incident {incident}."`
}

type SchedulerConfig struct {
	Enabled       bool   `yaml:"enabled" env:"VIGIL_SCHEDULER_ENABLED" env-default:"true"`
	ShiftRollCron string `yaml:"shift_roll_cron" env:"VIGIL_SCHEDULER_SHIFT_ROLL_CRON" env-default:"@every 1m"`
}

const maxUserSessionTTL = 12 * time.Hour

func (c *AppConfig) EffectiveSessionTTL() time.Duration {
	ttl := 3 * time.Hour
	if c != nil && c.SessionTTL > 0 {
		ttl = c.SessionTTL
	}
	if ttl > maxUserSessionTTL {
		return maxUserSessionTTL
	}
	return ttl
}
