package telegram

import (
	"sync"

	"github.com/gotd/td/tg"
)

// channelIDOffset turns a bare channel id into the marked form used across
// the system: channel -100xxxxxxxxxx, basic group -x, user x.
const channelIDOffset int64 = 1000000000000

// markedChatID converts a peer into its marked chat id
func markedChatID(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return -p.ChatID
	case *tg.PeerChannel:
		return -channelIDOffset - p.ChannelID
	}
	return 0
}

// peerCache remembers input peers seen in update entities so replies can be
// sent without a resolve round-trip. Access hashes are per-session, so each
// client keeps its own cache.
type peerCache struct {
	mu    sync.RWMutex
	peers map[int64]tg.InputPeerClass
}

func newPeerCache() *peerCache {
	return &peerCache{peers: make(map[int64]tg.InputPeerClass)}
}

// observe records every peer present in the entities of an update
func (c *peerCache) observe(e tg.Entities) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, user := range e.Users {
		c.peers[id] = &tg.InputPeerUser{UserID: id, AccessHash: user.AccessHash}
	}
	for id := range e.Chats {
		c.peers[-id] = &tg.InputPeerChat{ChatID: id}
	}
	for id, channel := range e.Channels {
		c.peers[-channelIDOffset-id] = &tg.InputPeerChannel{ChannelID: id, AccessHash: channel.AccessHash}
	}
}

// get returns the input peer for a marked chat id
func (c *peerCache) get(chatID int64) (tg.InputPeerClass, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	peer, ok := c.peers[chatID]
	return peer, ok
}
