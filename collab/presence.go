package collab

import (
	"sort"
	"sync"

	"github.com/akinalp/tahta/models"
)

// PresenceTracker, presence kanalının roster'ını yerel olarak izler.
//
// Kaynaklar:
//   - subscription_succeeded → tam snapshot (roster'ı TAMAMEN değiştirir)
//   - member_added → tek üye ekler; zaten roster'daki id için NO-OP
//     (aynı kullanıcının ikinci tab'ı veya tekrarlanan event roster'ı şişirmez)
//   - member_removed → tek üye düşürür; roster'da olmayan id için no-op
//
// Reconnect sonrası yeni snapshot gelir — ara dönemde kaçan join/leave'ler
// snapshot'la kendiliğinden düzelir.
type PresenceTracker struct {
	mu      sync.RWMutex
	members map[string]models.PresenceMember

	// subscribed: snapshot alındı mı? Presence göstergesi UI'ı boş roster
	// ile "kanal boş" durumunu bu bayrakla ayırt eder.
	subscribed bool

	// onChange, roster her değiştiğinde güncel listeyle çağrılır.
	// Tracker'ın lock'u dışında çağrılır — callback tracker metodlarını
	// güvenle çağırabilir.
	onChange func([]models.PresenceMember)
}

// NewPresenceTracker, constructor. onChange nil olabilir.
func NewPresenceTracker(onChange func([]models.PresenceMember)) *PresenceTracker {
	return &PresenceTracker{
		members:  make(map[string]models.PresenceMember),
		onChange: onChange,
	}
}

// ApplySnapshot, roster'ı subscription anındaki tam listeyle değiştirir.
func (p *PresenceTracker) ApplySnapshot(members []models.PresenceMember) {
	p.mu.Lock()
	p.members = make(map[string]models.PresenceMember, len(members))
	for _, m := range members {
		p.members[m.ID] = m
	}
	p.subscribed = true
	p.mu.Unlock()

	p.notify()
}

// ApplyJoin, member_added event'ini işler. Üye zaten roster'daysa no-op —
// profil bilgisi bile güncellenmez, mevcut girdi korunur.
func (p *PresenceTracker) ApplyJoin(member models.PresenceMember) {
	p.mu.Lock()
	if _, exists := p.members[member.ID]; exists {
		p.mu.Unlock()
		return
	}
	p.members[member.ID] = member
	p.mu.Unlock()

	p.notify()
}

// ApplyLeave, member_removed event'ini işler. Roster'da olmayan id no-op.
func (p *PresenceTracker) ApplyLeave(memberID string) {
	p.mu.Lock()
	if _, exists := p.members[memberID]; !exists {
		p.mu.Unlock()
		return
	}
	delete(p.members, memberID)
	p.mu.Unlock()

	p.notify()
}

// Clear, roster'ı boşaltır ve subscribed bayrağını düşürür (kanaldan
// ayrılırken veya abonelik reddedildiğinde).
func (p *PresenceTracker) Clear() {
	p.mu.Lock()
	hadMembers := len(p.members) > 0
	p.members = make(map[string]models.PresenceMember)
	p.subscribed = false
	p.mu.Unlock()

	if hadMembers {
		p.notify()
	}
}

// Members, roster'ın id'ye göre sıralı kopyasını döner.
// Sıralama deterministik UI render'ı içindir.
func (p *PresenceTracker) Members() []models.PresenceMember {
	p.mu.RLock()
	defer p.mu.RUnlock()

	list := make([]models.PresenceMember, 0, len(p.members))
	for _, m := range p.members {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Subscribed, ilk roster snapshot'ının alınıp alınmadığını döner.
func (p *PresenceTracker) Subscribed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.subscribed
}

// Contains, üyenin roster'da olup olmadığını döner.
func (p *PresenceTracker) Contains(memberID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.members[memberID]
	return ok
}

// Count, roster'daki üye sayısı.
func (p *PresenceTracker) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.members)
}

func (p *PresenceTracker) notify() {
	if p.onChange != nil {
		p.onChange(p.Members())
	}
}
