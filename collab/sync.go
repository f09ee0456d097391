package collab

import (
	"encoding/json"
	"log"
)

// Kanal event adları — wire kontratının parçası.
const (
	EventShapeChange = "client-shape-change"
	EventCursorMove  = "client-cursor-move"
)

// Shape change action'ları
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// ShapeChange, "client-shape-change" event'inin wire formatı.
//
// Records, create/update'te tam kayıtları, delete'te en az id alanı dolu
// kayıtları taşır. UserID gönderen kullanıcıdır — alıcı kendi id'sini
// görürse event'i yoksayar (kanal teslimi publisher'ı da içerir).
type ShapeChange struct {
	Action  string            `json:"action"`
	Records []json.RawMessage `json:"records"`
	UserID  string            `json:"userId"`
}

// ShapeSynchronizer, ShapeStore ile kanal arasındaki köprü.
//
// İki yön:
//   - Store'dan gelen LOCAL origin'li batch'ler kanala yayınlanır.
//     Remote origin'li batch'ler yayınlanmaz — echo döngüsü origin
//     etiketiyle kesilir, global bayrakla değil.
//   - Kanaldan gelen event'ler doğrulanıp store'a REMOTE origin ile
//     uygulanır.
//
// Bozuk payload toleransı: hatalı JSON veya id'siz kayıt event'i düşürür
// ama oturumu BOZMAZ — sonraki event'ler normal işlenir. Kısmen bozuk bir
// batch'te sağlam kayıtlar yine uygulanır.
type ShapeSynchronizer struct {
	store  *ShapeStore
	selfID string

	// publish, local batch'i kanala yazar (transport.Publish sarmalar).
	publish func(event string, payload any) error
}

// NewShapeSynchronizer, constructor.
//
// Store'un mutation callback'i synchronizer'ın HandleMutation'ına
// bağlanmalıdır:
//
//	var sync *ShapeSynchronizer
//	store := NewShapeStore(func(b MutationBatch) { sync.HandleMutation(b) })
//	sync = NewShapeSynchronizer(store, selfID, publish)
func NewShapeSynchronizer(store *ShapeStore, selfID string, publish func(event string, payload any) error) *ShapeSynchronizer {
	return &ShapeSynchronizer{
		store:   store,
		selfID:  selfID,
		publish: publish,
	}
}

// CreateShapes, kullanıcının yeni shape'lerini store'a uygular.
// Store local origin'li batch bildirir → HandleMutation yayınlar.
func (s *ShapeSynchronizer) CreateShapes(shapes []Shape) {
	s.store.Upsert(OriginLocal, shapes)
}

// UpdateShapes, kullanıcının düzenlemelerini store'a uygular.
func (s *ShapeSynchronizer) UpdateShapes(shapes []Shape) {
	s.store.Upsert(OriginLocal, shapes)
}

// DeleteShapes, kullanıcının sildiği shape'leri store'dan düşürür.
func (s *ShapeSynchronizer) DeleteShapes(ids []string) {
	s.store.Remove(OriginLocal, ids)
}

// HandleMutation, store'un bildirdiği batch'i işler.
// Sadece local origin yayınlanır; remote batch'ler zaten kanaldan geldi.
func (s *ShapeSynchronizer) HandleMutation(batch MutationBatch) {
	if batch.Origin != OriginLocal {
		return
	}

	if len(batch.Added) > 0 {
		s.send(ShapeChange{Action: ActionCreate, Records: rawRecords(batch.Added), UserID: s.selfID})
	}
	if len(batch.Updated) > 0 {
		s.send(ShapeChange{Action: ActionUpdate, Records: rawRecords(batch.Updated), UserID: s.selfID})
	}

	if len(batch.RemovedIDs) > 0 {
		records := make([]json.RawMessage, 0, len(batch.RemovedIDs))
		for _, id := range batch.RemovedIDs {
			ref, err := json.Marshal(map[string]string{"id": id})
			if err != nil {
				continue
			}
			records = append(records, ref)
		}
		s.send(ShapeChange{Action: ActionDelete, Records: records, UserID: s.selfID})
	}
}

// HandleRemote, kanaldan gelen client-shape-change event'ini işler.
func (s *ShapeSynchronizer) HandleRemote(data json.RawMessage) {
	var change ShapeChange
	if err := json.Unmarshal(data, &change); err != nil {
		log.Printf("[collab] dropping malformed shape change: %v", err)
		return
	}

	// Kendi yayınımızın echo'su — store zaten güncel
	if change.UserID == s.selfID {
		return
	}

	switch change.Action {
	case ActionCreate, ActionUpdate:
		shapes := make([]Shape, 0, len(change.Records))
		for _, raw := range change.Records {
			shape, err := ParseShape(raw)
			if err != nil {
				// Bozuk kayıt batch'i düşürmez — sağlamlar uygulanır
				log.Printf("[collab] skipping bad record in shape change: %v", err)
				continue
			}
			shapes = append(shapes, shape)
		}
		s.store.Upsert(OriginRemote, shapes)

	case ActionDelete:
		ids := make([]string, 0, len(change.Records))
		for _, raw := range change.Records {
			shape, err := ParseShape(raw)
			if err != nil {
				log.Printf("[collab] skipping bad record in shape delete: %v", err)
				continue
			}
			ids = append(ids, shape.ID)
		}
		s.store.Remove(OriginRemote, ids)

	default:
		log.Printf("[collab] dropping shape change with unknown action %q", change.Action)
	}
}

func rawRecords(shapes []Shape) []json.RawMessage {
	records := make([]json.RawMessage, 0, len(shapes))
	for _, shape := range shapes {
		records = append(records, shape.Data)
	}
	return records
}

func (s *ShapeSynchronizer) send(change ShapeChange) {
	if err := s.publish(EventShapeChange, change); err != nil {
		log.Printf("[collab] failed to publish shape change: %v", err)
	}
}
