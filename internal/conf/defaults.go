// defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// setDefaultConfig sets the default values for each configuration parameter.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	// Database settings
	viper.SetDefault("database.sqlite.enabled", true)
	viper.SetDefault("database.sqlite.path", "surfwatch.db")
	viper.SetDefault("database.mysql.enabled", false)
	viper.SetDefault("database.mysql.username", "surfwatch")
	viper.SetDefault("database.mysql.password", "surfwatch")
	viper.SetDefault("database.mysql.database", "surfwatch")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")

	// Forecast fetch settings
	viper.SetDefault("forecast.provider", "surfline")
	viper.SetDefault("forecast.days", 5)
	viper.SetDefault("forecast.intervalhours", 1)
	viper.SetDefault("forecast.maxretries", 3)
	viper.SetDefault("forecast.retrydelay", 5)

	// Rewind scraping settings
	viper.SetDefault("rewind.provider", "surfline")
	viper.SetDefault("rewind.days", 2)

	// Video acquisition and transcoding settings
	viper.SetDefault("video.ffmpegpath", "ffmpeg")
	viper.SetDefault("video.ffprobepath", "ffprobe")
	viper.SetDefault("video.scratchpath", "scratch")
	viper.SetDefault("video.exportpath", "clips")
	viper.SetDefault("video.targetduration", 60)
	viper.SetDefault("video.targetframerate", 10)
	viper.SetDefault("video.crf", 28)
	viper.SetDefault("video.workers", 2)
	viper.SetDefault("video.download.maxretries", 3)
	viper.SetDefault("video.download.backoffbase", 2)
	viper.SetDefault("video.download.backofflimit", 30)
}
