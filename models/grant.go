package models

// ChannelAuthRequest, realtime auth endpoint'ine gelen istek gövdesi.
//
// Alan adları transport kontratının parçasıdır (snake_case) — client
// kütüphanesi subscribe öncesi bu isteği otomatik yapar.
type ChannelAuthRequest struct {
	SocketID    string `json:"socket_id"`
	ChannelName string `json:"channel_name"`
}

// ChannelGrant, Access Gate'in başarılı yetkilendirme sonucu döndürdüğü yanıt.
//
// Grant alanı imzalı, kısa ömürlü, (socket_id, channel_name) scope'lu bir
// JWT'dir — client bunu olduğu gibi subscribe frame'ine koyar, içeriğini
// yorumlamaz (opak). Member, presence kanallarında grant'e gömülen profildir;
// client kendi profilini göstermek için kullanabilir.
type ChannelGrant struct {
	Grant  string          `json:"grant"`
	Member *PresenceMember `json:"member,omitempty"`
}
