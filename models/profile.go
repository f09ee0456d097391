package models

import "time"

// Profile, kullanıcının board'larda diğer üyelere görünen kimliğidir.
//
// users tablosundan ayrı tutulur: Access Gate, profili olmayan bir kullanıcı
// ilk kez bir board'a bağlandığında session kimliğinden minimal bir profil
// üretir (auto-provision). Böylece ilk kez davet edilen bir collaborator
// eksik satır yüzünden kapıda kalmaz.
type Profile struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	AvatarURL *string   `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

// PresenceMember, presence roster'ında taşınan üye bilgisi.
// Profile'ın wire karşılığıdır — roster payload'ları ve grant'ler bunu taşır.
type PresenceMember struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar,omitempty"`
}

// Member, profilin roster formatını döner.
func (p *Profile) Member() PresenceMember {
	return PresenceMember{
		ID:     p.UserID,
		Name:   p.Name,
		Avatar: p.AvatarURL,
	}
}
