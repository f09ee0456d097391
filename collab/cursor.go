package collab

import (
	"hash/fnv"
	"sync"
	"time"
)

// CursorMove, "client-cursor-move" event'inin wire formatı.
// Alan adları kanal kontratının parçasıdır (camelCase).
type CursorMove struct {
	UserID     string  `json:"userId"`
	UserName   string  `json:"userName"`
	UserAvatar *string `json:"userAvatar,omitempty"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Color      string  `json:"color"`
}

// cursorPalette, cursor renkleri. Renk user id'den deterministik seçilir —
// aynı kullanıcı her oturumda, her katılımcının ekranında aynı rengi alır.
var cursorPalette = []string{
	"#EF4444", // red
	"#F97316", // orange
	"#EAB308", // yellow
	"#22C55E", // green
	"#14B8A6", // teal
	"#3B82F6", // blue
	"#8B5CF6", // violet
	"#EC4899", // pink
}

// CursorColor, user id'nin FNV-1a hash'i ile paletten renk seçer.
func CursorColor(userID string) string {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return cursorPalette[h.Sum32()%uint32(len(cursorPalette))]
}

// Varsayılan cursor zamanlamaları
const (
	// cursorThrottle: yayın penceresi. Mouse hareketi 60Hz+ event üretir;
	// pencere içindeki hareketler birleştirilir, pencere sonunda SON konum
	// yayınlanır (trailing edge) — son konum asla kaybolmaz.
	cursorThrottle = 50 * time.Millisecond

	// cursorExpiry: bu süre boyunca hareket göndermeyen remote cursor
	// ekrandan kaldırılır. Kullanıcı hâlâ kanalda olabilir — sadece
	// cursor'u bayatlamıştır.
	cursorExpiry = 3 * time.Second
)

// CursorBroadcaster, cursor hareketlerinin iki yönünü yönetir:
//
// Yayın: Move çağrıları throttle penceresinde birleştirilir, pencere
// kapanınca son konum publish fonksiyonuna verilir.
//
// Alma: ApplyRemote gelen hareketi işler. Kendi user id'mizin hareketi
// YOKSAYILIR (kanal teslimi publisher'ı da içerir — yerel cursor zaten
// doğru yerdedir). Her remote cursor son hareketinden cursorExpiry sonra
// silinir.
type CursorBroadcaster struct {
	selfID   string
	selfName string
	avatar   *string
	color    string

	// publish, throttle penceresi kapanınca çağrılır.
	publish func(CursorMove)

	throttle time.Duration
	expiry   time.Duration

	mu      sync.Mutex
	pending *CursorMove // pencere içinde biriken son konum
	timer   *time.Timer // aktif throttle penceresi; nil = pencere yok
	closed  bool

	cursors map[string]*remoteCursor

	// onUpdate/onExpire: remote cursor değişim bildirimleri. nil olabilir.
	onUpdate func(CursorMove)
	onExpire func(userID string)
}

type remoteCursor struct {
	move  CursorMove
	timer *time.Timer
}

// CursorOption, test ve ince ayar için opsiyonel yapılandırma.
type CursorOption func(*CursorBroadcaster)

// WithThrottle, yayın penceresini değiştirir.
func WithThrottle(d time.Duration) CursorOption {
	return func(c *CursorBroadcaster) { c.throttle = d }
}

// WithExpiry, remote cursor bayatlamasını değiştirir.
func WithExpiry(d time.Duration) CursorOption {
	return func(c *CursorBroadcaster) { c.expiry = d }
}

// NewCursorBroadcaster, constructor.
//
// publish: pencere sonunda çağrılan yayın fonksiyonu (transport.Publish sarmalar).
// onUpdate: remote cursor hareketinde çağrılır. onExpire: cursor bayatlayınca.
func NewCursorBroadcaster(
	selfID, selfName string,
	avatar *string,
	publish func(CursorMove),
	onUpdate func(CursorMove),
	onExpire func(userID string),
	opts ...CursorOption,
) *CursorBroadcaster {
	c := &CursorBroadcaster{
		selfID:   selfID,
		selfName: selfName,
		avatar:   avatar,
		color:    CursorColor(selfID),
		publish:  publish,
		throttle: cursorThrottle,
		expiry:   cursorExpiry,
		cursors:  make(map[string]*remoteCursor),
		onUpdate: onUpdate,
		onExpire: onExpire,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Move, yerel cursor hareketini kaydeder.
//
// Pencere açık değilse yeni pencere açılır; açıksa sadece pending güncellenir.
// Pencere kapanınca pending'deki SON konum yayınlanır — aradaki konumlar
// bilinçli olarak atlanır.
func (c *CursorBroadcaster) Move(x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.pending = &CursorMove{
		UserID:     c.selfID,
		UserName:   c.selfName,
		UserAvatar: c.avatar,
		X:          x,
		Y:          y,
		Color:      c.color,
	}

	if c.timer == nil {
		c.timer = time.AfterFunc(c.throttle, c.flush)
	}
}

// flush, throttle penceresini kapatır ve son konumu yayınlar.
func (c *CursorBroadcaster) flush() {
	c.mu.Lock()
	move := c.pending
	c.pending = nil
	c.timer = nil
	closed := c.closed
	c.mu.Unlock()

	if closed || move == nil {
		return
	}
	c.publish(*move)
}

// ApplyRemote, kanaldan gelen cursor hareketini işler.
// Kendi hareketimiz ve boş userId yoksayılır.
func (c *CursorBroadcaster) ApplyRemote(move CursorMove) {
	if move.UserID == "" || move.UserID == c.selfID {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	existing, ok := c.cursors[move.UserID]
	if ok {
		existing.move = move
		existing.timer.Reset(c.expiry)
	} else {
		userID := move.UserID
		c.cursors[userID] = &remoteCursor{
			move:  move,
			timer: time.AfterFunc(c.expiry, func() { c.expire(userID) }),
		}
	}
	c.mu.Unlock()

	if c.onUpdate != nil {
		c.onUpdate(move)
	}
}

// expire, bayatlayan cursor'u kaldırır.
func (c *CursorBroadcaster) expire(userID string) {
	c.mu.Lock()
	if _, ok := c.cursors[userID]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.cursors, userID)
	c.mu.Unlock()

	if c.onExpire != nil {
		c.onExpire(userID)
	}
}

// Remove, üyenin cursor'unu hemen kaldırır (kanaldan ayrıldığında —
// 3 saniye bayatlamasını beklemeye gerek yok).
func (c *CursorBroadcaster) Remove(userID string) {
	c.mu.Lock()
	cursor, ok := c.cursors[userID]
	if ok {
		cursor.timer.Stop()
		delete(c.cursors, userID)
	}
	c.mu.Unlock()

	if ok && c.onExpire != nil {
		c.onExpire(userID)
	}
}

// Cursors, görünür remote cursor'ların kopyasını döner.
func (c *CursorBroadcaster) Cursors() map[string]CursorMove {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]CursorMove, len(c.cursors))
	for id, cursor := range c.cursors {
		out[id] = cursor.move
	}
	return out
}

// Close, bekleyen timer'ları durdurur. Sonraki Move/ApplyRemote no-op'tur.
func (c *CursorBroadcaster) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = nil

	for id, cursor := range c.cursors {
		cursor.timer.Stop()
		delete(c.cursors, id)
	}
}
