package model

import "sort"

// DefaultCircleColor is used when a circle has no display colour configured.
const DefaultCircleColor = 0x95a5a6

// Circle is one entry of the routing table: where a circle's agenda items
// live and who may write them.
type Circle struct {
	Name             string            `json:"name" toml:"name" yaml:"name"`
	BacklogChannelID string            `json:"backlog_channel_id" toml:"backlog_channel_id" yaml:"backlog_channel_id"`
	ChatChannelID    string            `json:"chat_channel_id,omitempty" toml:"chat_channel_id" yaml:"chat_channel_id"`
	WriterRoleIDs    []string          `json:"writer_role_ids,omitempty" toml:"writer_role_ids" yaml:"writer_role_ids"`
	Color            int               `json:"color,omitempty" toml:"color" yaml:"color"`
	Aliases          map[string]string `json:"aliases,omitempty" toml:"aliases" yaml:"aliases"`
}

// CanWrite reports whether any of roles is a writer role for the circle.
func (c *Circle) CanWrite(roles []string) bool {
	for _, want := range c.WriterRoleIDs {
		for _, have := range roles {
			if want == have {
				return true
			}
		}
	}
	return false
}

// DisplayColor returns the configured colour or the default.
func (c *Circle) DisplayColor() int {
	if c == nil || c.Color == 0 {
		return DefaultCircleColor
	}
	return c.Color
}

// Circles is the routing table keyed by circle name.
type Circles map[string]*Circle

// ByBacklogChannel finds the circle that owns a backlog channel.
func (cs Circles) ByBacklogChannel(channelID string) (*Circle, bool) {
	for _, c := range cs {
		if c.BacklogChannelID == channelID {
			return c, true
		}
	}
	return nil, false
}

// Names returns the circle names in sorted order.
func (cs Circles) Names() []string {
	names := make([]string, 0, len(cs))
	for name := range cs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
