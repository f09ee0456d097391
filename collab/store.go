package collab

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Origin, bir mutation batch'inin kaynağı.
//
// Her mutation kaynağıyla etiketlenir: kullanıcının kendi düzenlemeleri
// local, kanaldan gelenler remote. Synchronizer SADECE local batch'leri
// yayınlar — remote bir batch'in tekrar kanala yazılıp sonsuz echo döngüsü
// oluşturması yapısal olarak imkansızdır. Etiket batch'in kendisinde
// taşındığı için eşzamanlı local/remote mutation'lar birbirinin yayınını
// bastırmaz (global bir "suppress" bayrağının aksine).
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// Shape, store'daki tek bir kayıt. Data, id dahil kaydın tam JSON'ıdır —
// store shape'in iç yapısını yorumlamaz, sadece id ile adresler.
type Shape struct {
	ID   string
	Data json.RawMessage
}

// ParseShape, ham kayıttan id'yi çıkarır. id'siz kayıt hatadır.
func ParseShape(raw json.RawMessage) (Shape, error) {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Shape{}, fmt.Errorf("malformed shape record: %w", err)
	}
	if probe.ID == "" {
		return Shape{}, fmt.Errorf("shape record missing id")
	}
	return Shape{ID: probe.ID, Data: raw}, nil
}

// MutationBatch, store'a uygulanan tek bir değişiklik kümesi.
// Added, store'da olmayan id'lerin upsert'i; Updated, var olanların.
type MutationBatch struct {
	Origin     Origin
	Added      []Shape
	Updated    []Shape
	RemovedIDs []string
}

// ShapeStore, board'daki shape'lerin yerel replikası.
//
// Çakışma çözümü last-write-wins: upsert her zaman mevcut kaydın üzerine
// yazar, kim daha önce yazmış diye bakılmaz. Aynı shape'i aynı anda iki
// kişi düzenlerse kanal teslim sırası kazananı belirler — tüm replikalar
// aynı sırayı gördüğü için aynı sonuca yakınsar.
type ShapeStore struct {
	mu     sync.RWMutex
	shapes map[string]Shape

	// onMutation, her uygulanmış batch'te çağrılır (boş batch'ler hariç).
	// Lock dışında çağrılır.
	onMutation func(MutationBatch)
}

// NewShapeStore, constructor. onMutation nil olabilir.
func NewShapeStore(onMutation func(MutationBatch)) *ShapeStore {
	return &ShapeStore{
		shapes:     make(map[string]Shape),
		onMutation: onMutation,
	}
}

// document, HTTP snapshot formatı: { "records": [...] }
type document struct {
	Records []json.RawMessage `json:"records"`
}

// LoadSnapshot, store'u kalıcı dokümandan doldurur. Mevcut içerik atılır,
// mutation bildirimi YAPILMAZ — snapshot senkronizasyon değil başlangıç
// durumudur.
func (s *ShapeStore) LoadSnapshot(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("malformed document snapshot: %w", err)
	}

	shapes := make(map[string]Shape, len(doc.Records))
	for _, raw := range doc.Records {
		shape, err := ParseShape(raw)
		if err != nil {
			return err
		}
		shapes[shape.ID] = shape
	}

	s.mu.Lock()
	s.shapes = shapes
	s.mu.Unlock()
	return nil
}

// Snapshot, store'un kalıcılığa gönderilecek dokümanını üretir.
// Kayıtlar id sırasında — snapshot diff'lenebilir olur.
func (s *ShapeStore) Snapshot() ([]byte, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.shapes))
	for id := range s.shapes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	doc := document{Records: make([]json.RawMessage, 0, len(ids))}
	for _, id := range ids {
		doc.Records = append(doc.Records, s.shapes[id].Data)
	}
	s.mu.RUnlock()

	return json.Marshal(doc)
}

// Upsert, shape'leri ekler veya üzerine yazar (last-write-wins).
// Silinmiş bir id'nin upsert'i kaydı yeniden yaratır.
func (s *ShapeStore) Upsert(origin Origin, shapes []Shape) {
	if len(shapes) == 0 {
		return
	}

	s.mu.Lock()
	var added, updated []Shape
	for _, shape := range shapes {
		if _, exists := s.shapes[shape.ID]; exists {
			updated = append(updated, shape)
		} else {
			added = append(added, shape)
		}
		s.shapes[shape.ID] = shape
	}
	s.mu.Unlock()

	s.emit(MutationBatch{Origin: origin, Added: added, Updated: updated})
}

// Remove, shape'leri id ile siler. Olmayan id'ler sessizce atlanır —
// iki kişinin aynı shape'i silmesi hata değildir. Batch bildiriminde
// yalnızca GERÇEKTEN silinen id'ler yer alır.
func (s *ShapeStore) Remove(origin Origin, ids []string) {
	if len(ids) == 0 {
		return
	}

	s.mu.Lock()
	removed := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.shapes[id]; ok {
			delete(s.shapes, id)
			removed = append(removed, id)
		}
	}
	s.mu.Unlock()

	if len(removed) == 0 {
		return
	}
	s.emit(MutationBatch{Origin: origin, RemovedIDs: removed})
}

// Get, id'deki shape'i döner.
func (s *ShapeStore) Get(id string) (Shape, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shape, ok := s.shapes[id]
	return shape, ok
}

// Len, store'daki shape sayısı.
func (s *ShapeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shapes)
}

func (s *ShapeStore) emit(batch MutationBatch) {
	if s.onMutation != nil {
		s.onMutation(batch)
	}
}
