package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/akinalp/tahta/models"
)

// Session, tek bir board'un gerçek zamanlı oturumu.
//
// İki kanala abone olur:
//   - private-whiteboard-<id>: shape senkronizasyonu
//   - presence-whiteboard-<id>: roster + cursor
//
// Transport event'lerini tek bir dispatch goroutine'inde tüketir ve ilgili
// bileşene yönlendirir. Tüm callback'ler bu goroutine'den çağrılır —
// callback içinde Session metodları güvenle kullanılabilir.
type Session struct {
	transport Transport
	boardID   string
	self      models.PresenceMember

	docChannel      string
	presenceChannel string

	presence *PresenceTracker
	cursors  *CursorBroadcaster
	store    *ShapeStore
	sync     *ShapeSynchronizer

	onState    func(ConnectionState)
	onSubError func(channel string, status int, message string)
	cursorOpts []CursorOption

	onPersist    func([]byte)
	persistDelay time.Duration
	persistMu    sync.Mutex
	persistTimer *time.Timer

	done chan struct{}
}

// SessionOption, opsiyonel oturum yapılandırması.
type SessionOption func(*Session)

// WithStateHandler, bağlantı durumu değişimlerinde çağrılan callback.
func WithStateHandler(fn func(ConnectionState)) SessionOption {
	return func(s *Session) { s.onState = fn }
}

// WithSubscriptionErrorHandler, abonelik reddedildiğinde çağrılan callback.
// status 403/404 kalıcıdır — UI kullanıcıyı board listesine döndürmelidir.
func WithSubscriptionErrorHandler(fn func(channel string, status int, message string)) SessionOption {
	return func(s *Session) { s.onSubError = fn }
}

// WithCursorOptions, cursor zamanlamalarını değiştirir (testler için).
func WithCursorOptions(opts ...CursorOption) SessionOption {
	return func(s *Session) { s.cursorOpts = opts }
}

// WithPersistHook, her mutasyondan delay sonra güncel doküman snapshot'ını
// fn'e verir. Ardışık mutasyonlar zamanlayıcıyı sıfırlar — kalıcılık ancak
// çizim durulduğunda tetiklenir. fn genelde PUT /documents çağrısı yapar.
func WithPersistHook(fn func(snapshot []byte), delay time.Duration) SessionOption {
	return func(s *Session) {
		s.onPersist = fn
		s.persistDelay = delay
	}
}

// NewSession, constructor. self, kullanıcının roster kimliğidir (auth
// endpoint'inin member alanından veya profil API'sinden gelir).
//
// onPresence/onCursor/onMutation: UI'ın render katmanına bağlanan
// callback'ler; nil olabilir.
func NewSession(
	transport Transport,
	boardID string,
	self models.PresenceMember,
	onPresence func([]models.PresenceMember),
	onCursor func(CursorMove),
	onCursorGone func(userID string),
	onMutation func(MutationBatch),
	opts ...SessionOption,
) *Session {
	s := &Session{
		transport:       transport,
		boardID:         boardID,
		self:            self,
		docChannel:      models.DocumentChannel(boardID),
		presenceChannel: models.PresenceChannel(boardID),
		presence:        NewPresenceTracker(onPresence),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cursors = NewCursorBroadcaster(
		self.ID, self.Name, self.Avatar,
		s.publishCursor,
		onCursor,
		onCursorGone,
		s.cursorOpts...,
	)

	s.store = NewShapeStore(func(batch MutationBatch) {
		s.sync.HandleMutation(batch)
		if onMutation != nil {
			onMutation(batch)
		}
		s.schedulePersist()
	})
	s.sync = NewShapeSynchronizer(s.store, self.ID, func(event string, payload any) error {
		return s.transport.Publish(s.docChannel, event, payload)
	})

	return s
}

// Start, bağlantıyı kurar, iki kanala abone olur ve dispatch döngüsünü başlatır.
func (s *Session) Start(ctx context.Context) error {
	if err := s.transport.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	go s.dispatch()

	if err := s.transport.Subscribe(ctx, s.docChannel); err != nil {
		return fmt.Errorf("failed to subscribe to document channel: %w", err)
	}
	if err := s.transport.Subscribe(ctx, s.presenceChannel); err != nil {
		return fmt.Errorf("failed to subscribe to presence channel: %w", err)
	}

	return nil
}

// LoadDocument, HTTP'den alınan kalıcı snapshot'ı store'a yükler.
// Start'tan önce veya hemen sonra çağrılır.
func (s *Session) LoadDocument(data []byte) error {
	return s.store.LoadSnapshot(data)
}

// SnapshotDocument, kalıcılığa gönderilecek güncel dokümanı üretir.
func (s *Session) SnapshotDocument() ([]byte, error) {
	return s.store.Snapshot()
}

// MoveCursor, yerel cursor hareketini bildirir (throttle'lanır).
func (s *Session) MoveCursor(x, y float64) {
	s.cursors.Move(x, y)
}

// CreateShapes, yeni shape'leri uygular ve yayınlar.
func (s *Session) CreateShapes(shapes []Shape) { s.sync.CreateShapes(shapes) }

// UpdateShapes, düzenlemeleri uygular ve yayınlar.
func (s *Session) UpdateShapes(shapes []Shape) { s.sync.UpdateShapes(shapes) }

// DeleteShapes, silmeleri uygular ve yayınlar.
func (s *Session) DeleteShapes(ids []string) { s.sync.DeleteShapes(ids) }

// Members, güncel roster.
func (s *Session) Members() []models.PresenceMember { return s.presence.Members() }

// PresenceSubscribed, presence kanalının roster snapshot'ının alınıp
// alınmadığını döner — presence göstergesi bu bayrağa bakar.
func (s *Session) PresenceSubscribed() bool { return s.presence.Subscribed() }

// RemoteCursors, görünür remote cursor'lar.
func (s *Session) RemoteCursors() map[string]CursorMove { return s.cursors.Cursors() }

// Store, shape replikasına doğrudan (okuma amaçlı) erişim.
func (s *Session) Store() *ShapeStore { return s.store }

// State, transport bağlantı durumu.
func (s *Session) State() ConnectionState { return s.transport.State() }

// Leave, kanallardan ayrılır ama transport'u açık bırakır —
// kullanıcı başka bir board'a geçiyor olabilir.
func (s *Session) Leave() {
	if err := s.transport.Unsubscribe(s.docChannel); err != nil {
		log.Printf("[collab] unsubscribe %s failed: %v", s.docChannel, err)
	}
	if err := s.transport.Unsubscribe(s.presenceChannel); err != nil {
		log.Printf("[collab] unsubscribe %s failed: %v", s.presenceChannel, err)
	}
	s.presence.Clear()
	s.cursors.Close()
	s.stopPersist()
}

// Close, oturumu ve transport'u kapatır.
func (s *Session) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.cursors.Close()
	s.stopPersist()
	return s.transport.Close()
}

// ─── Private Helpers ───

// schedulePersist, debounce zamanlayıcısını (yeniden) kurar.
func (s *Session) schedulePersist() {
	if s.onPersist == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if s.persistTimer != nil {
		s.persistTimer.Stop()
	}
	s.persistTimer = time.AfterFunc(s.persistDelay, func() {
		data, err := s.store.Snapshot()
		if err != nil {
			log.Printf("[collab] document snapshot failed: %v", err)
			return
		}
		s.onPersist(data)
	})
}

// stopPersist, bekleyen kalıcılık zamanlayıcısını iptal eder.
func (s *Session) stopPersist() {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if s.persistTimer != nil {
		s.persistTimer.Stop()
		s.persistTimer = nil
	}
}

func (s *Session) publishCursor(move CursorMove) {
	if err := s.transport.Publish(s.presenceChannel, EventCursorMove, move); err != nil {
		log.Printf("[collab] failed to publish cursor move: %v", err)
	}
}

// dispatch, transport event'lerini bileşenlere yönlendirir.
func (s *Session) dispatch() {
	events := s.transport.Events()
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handleEvent(ev)
		}
	}
}

func (s *Session) handleEvent(ev Event) {
	switch ev.Type {
	case EventStateChange:
		if s.onState != nil {
			s.onState(ev.State)
		}

	case EventSubscribed:
		// Roster snapshot'ı sadece presence kanalından gelir
		if ev.Channel == s.presenceChannel {
			s.presence.ApplySnapshot(ev.Members)
		}

	case EventSubscriptionError:
		log.Printf("[collab] subscription to %s rejected (%d): %s", ev.Channel, ev.Status, ev.Error)
		if ev.Channel == s.presenceChannel {
			// Roster artık güvenilir değil — gösterge "bağlı değil"e döner
			s.presence.Clear()
		}
		if s.onSubError != nil {
			s.onSubError(ev.Channel, ev.Status, ev.Error)
		}

	case EventMemberAdded:
		if ev.Channel == s.presenceChannel && ev.Member != nil {
			s.presence.ApplyJoin(*ev.Member)
		}

	case EventMemberRemoved:
		if ev.Channel == s.presenceChannel && ev.Member != nil {
			s.presence.ApplyLeave(ev.Member.ID)
			// Ayrılan üyenin cursor'u bayatlamayı beklemeden kalkar
			s.cursors.Remove(ev.Member.ID)
		}

	case EventMessage:
		s.handleMessage(ev)
	}
}

func (s *Session) handleMessage(ev Event) {
	switch ev.Name {
	case EventShapeChange:
		if ev.Channel == s.docChannel {
			s.sync.HandleRemote(ev.Data)
		}

	case EventCursorMove:
		if ev.Channel != s.presenceChannel {
			return
		}
		var move CursorMove
		if err := json.Unmarshal(ev.Data, &move); err != nil {
			log.Printf("[collab] dropping malformed cursor move: %v", err)
			return
		}
		s.cursors.ApplyRemote(move)

	default:
		// Tanınmayan client event'leri sessizce geçilir — kanalda başka
		// uygulama özellikleri yaşıyor olabilir
	}
}
