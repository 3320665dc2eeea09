package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/obentoo/paperbot/internal/common/logger"
)

// RouteLibraryLogs sends discordgo's internal messages to l instead of the
// standard log package.
func RouteLibraryLogs(l *logger.Logger) {
	discordgo.Logger = func(msgL, caller int, format string, a ...interface{}) {
		msg := fmt.Sprintf(format, a...)
		switch msgL {
		case discordgo.LogError:
			l.Error("%s", msg)
		case discordgo.LogWarning:
			l.Warn("%s", msg)
		case discordgo.LogInformational:
			l.Info("%s", msg)
		default:
			l.Debug("%s", msg)
		}
	}
}
