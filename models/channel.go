package models

import (
	"fmt"
	"strings"
)

// ChannelKind, bir realtime kanalının türü.
//
// İki tür vardır:
//   - private:  shape senkronizasyonu — sadece event taşır
//   - presence: roster + cursor — üye giriş/çıkışları da yayınlanır
type ChannelKind string

const (
	ChannelPrivate  ChannelKind = "private"
	ChannelPresence ChannelKind = "presence"
)

const (
	privatePrefix  = "private-whiteboard-"
	presencePrefix = "presence-whiteboard-"
)

// DocumentChannel, bir board'un shape kanalının adını üretir.
func DocumentChannel(boardID string) string {
	return privatePrefix + boardID
}

// PresenceChannel, bir board'un presence kanalının adını üretir.
func PresenceChannel(boardID string) string {
	return presencePrefix + boardID
}

// ParseChannelName, kanal adını tür + board id çiftine çözer.
//
// Tanınmayan prefix veya boş board id hata döner — Access Gate bu hatayı
// yetki reddi olarak yorumlar, format detayını istemciye sızdırmaz.
func ParseChannelName(name string) (ChannelKind, string, error) {
	switch {
	case strings.HasPrefix(name, privatePrefix):
		id := name[len(privatePrefix):]
		if id == "" {
			return "", "", fmt.Errorf("empty whiteboard id in channel name %q", name)
		}
		return ChannelPrivate, id, nil
	case strings.HasPrefix(name, presencePrefix):
		id := name[len(presencePrefix):]
		if id == "" {
			return "", "", fmt.Errorf("empty whiteboard id in channel name %q", name)
		}
		return ChannelPresence, id, nil
	default:
		return "", "", fmt.Errorf("unrecognized channel name %q", name)
	}
}
