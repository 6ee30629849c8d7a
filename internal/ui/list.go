package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/pulse/internal/session"
)

var (
	_ list.Item = sessionItem{}
)

// sessionItem wraps [session.Info] to implement [list.Item].
type sessionItem struct {
	info session.Info
	own  bool
}

func (i sessionItem) FilterValue() string { return i.info.ID }
func (i sessionItem) Title() string {
	if i.own {
		return i.info.ID + " (this stream)"
	}
	return i.info.ID
}

func (i sessionItem) Description() string {
	age := time.Since(i.info.CreatedAt).Truncate(time.Second)
	return fmt.Sprintf("%s • %s • %d emitted • %s old", i.info.Transport, i.info.State, i.info.Emitted, age)
}

func sessionItems(infos []session.Info, own string) []list.Item {
	items := make([]list.Item, len(infos))
	for i, info := range infos {
		items[i] = sessionItem{info: info, own: info.ID == own}
	}
	return items
}
