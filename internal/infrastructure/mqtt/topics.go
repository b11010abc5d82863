package mqtt

import (
	"fmt"
	"regexp"
	"strings"
)

// Placeholder tokens in topic templates. Matching is case-insensitive.
const (
	PlaceholderID    = "{id}"
	PlaceholderEmail = "{email}"
)

// Server topics: requests published by the client to the vendor backend.
const (
	ServerUserAuth                = "server/user/auth"
	ServerUserCreate              = "server/user/create"
	ServerUserRead                = "server/{id}/v1/install/user/read"
	ServerLastVersionRead         = "server/{id}/v1/install/version/read/last"
	ServerUpdateVersion           = "server/{id}/v1/install/version/update"
	ServerUserLogout              = "server/user/logout"
	ServerUserRefreshToken        = "server/user/refreshToken"
	ServerUserReferential         = "server/{email}/v1/install/user/referential"
	ServerUserAskStatistics       = "server/{email}/{id}/v1/install/statistic/read"
	ServerAssociateCreate         = "server/{id}/v1/install/associate/create"
	ServerAssociateDelete         = "server/{id}/v1/install/associate/delete"
	ServerUpdateAdmin             = "server/{id}/v1/install/updateadmin"
	ServerAssociateDeleteForUser  = "server/{email}/{id}/v1/install/associate/user/delete"
	ServerAssociateCreateForUser  = "server/{email}/{id}/v1/install/associate/user/create"
	ServerUserUpdate              = "server/{id}/v1/install/user/update"
	ServerGeofencingUpdate        = "server/{email}/{id}/v1/install/geofencing/user/update"
	ServerInstallUpdate           = "server/{id}/v1/install/amend"
	ServerInstallAbsenceActivate  = "server/{email}/{id}/v1/install/absence/active"
	ServerInstallAbsenceDeactive  = "server/{email}/{id}/v1/install/absence/deactive"
	ServerGroupUpdate             = "server/{id}/v1/install/zonegroup/update"
	ServerGroupDelete             = "server/{id}/v1/install/zonegroup/delete"
	ServerGroupCreate             = "server/{id}/v1/install/zonegroup/create"
	ServerZoneUpdate              = "server/{id}/v1/install/zone/update"
	ServerProgramName             = "server/{email}/{id}/v1/install/program/name"
	ServerRoomProgramSet          = "server/{email}/{id}/v1/install/zone/program/set"
	ServerRoomProgramUnset        = "server/{email}/{id}/v1/install/zone/program/unset"
	ServerSendEmailReport         = "server/{email}/{id}/v1/install/flowtemperature/sendReport"
	ServerErrorSearch             = "server/{email}/{id}/v1/install/error/search"
	ServerMixedCircuitsSearch     = "server/{email}/{id}/v1/install/mixedcircuit/search"
	ServerErrorSettings           = "server/{email}/{id}/v1/install/error/settings"
	ServerSendErrorMessagesEmail  = "server/{email}/{id}/v1/install/error/sendReport"
	ServerSendWeatherToController = "server/{id}/v1/install/weather"
	ServerUpdateOwner             = "server/{id}/v1/install/installer/updateowner"
	ServerUpdateTimeZone          = "server/{id}/v1/install/updatetimezone"
)

// Client topics: where the backend and the controller publish to us.
const (
	ClientBase = "client/"

	// ClientListen carries user-level messages (referentials, user reads).
	ClientListen = "client/{email}"

	// ClientListenToController carries realtime controller messages
	// (channel updates, live data).
	ClientListenToController = "client/{id}/realtime"

	// ClientInstallation is where requests to the controller are published.
	ClientInstallation = "client/{id}"

	// ClientApp is the application-wide broadcast channel.
	ClientApp = "$client/app"
)

// Topics lists the topic templates a session subscribes to.
type Topics struct{}

// Subscriptions returns the listen templates in subscription order.
func (Topics) Subscriptions() []string {
	return []string{ClientListen, ClientListenToController}
}

// Placeholders carries the values substituted into topic templates.
type Placeholders struct {
	// Unique is the current installation's unique identifier ({id}).
	Unique string
	// Email is the authenticated user's login identifier ({email}).
	Email string
}

var placeholderPattern = regexp.MustCompile(`(?i)\{(id|email)\}`)

// Resolve substitutes {id} and {email} in template.
//
// Returns ErrUnresolvedTopic when a placeholder present in template has
// no value. A template without placeholders is returned unchanged.
func Resolve(template string, p Placeholders) (string, error) {
	if template == "" {
		return "", ErrInvalidTopic
	}

	var missing string
	resolved := placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		var value string
		if strings.EqualFold(token, PlaceholderID) {
			value = p.Unique
		} else {
			value = p.Email
		}
		if value == "" && missing == "" {
			missing = strings.ToLower(token)
		}
		return value
	})

	if missing != "" {
		return "", fmt.Errorf("%w: %s has no value in %q", ErrUnresolvedTopic, missing, template)
	}
	return resolved, nil
}

// HasPlaceholder reports whether topic still contains {id} or {email}.
func HasPlaceholder(topic string) bool {
	return placeholderPattern.MatchString(topic)
}

// MatchTemplate reports whether a concrete topic is an instance of template.
//
// Each placeholder level matches exactly one non-empty topic level; every
// other level must be equal.
//
//	MatchTemplate("client/{id}/realtime", "client/ABC123/realtime") // true
//	MatchTemplate("client/{id}", "client/ABC123/realtime")          // false
func MatchTemplate(template, topic string) bool {
	tLevels := strings.Split(template, "/")
	levels := strings.Split(topic, "/")
	if len(tLevels) != len(levels) {
		return false
	}

	for i, tl := range tLevels {
		if strings.EqualFold(tl, PlaceholderID) || strings.EqualFold(tl, PlaceholderEmail) {
			if levels[i] == "" {
				return false
			}
			continue
		}
		if tl != levels[i] {
			return false
		}
	}
	return true
}
