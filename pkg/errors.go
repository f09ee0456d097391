// Package pkg, projede paylaşılan utility'leri barındırır.
// Bu dosya domain-level error tanımlarını içerir.
//
// Go'da error'lar basit değerlerdir. errors.New() ile sabit error
// değişkenleri tanımlarız; karşılaştırma string yerine referans ile yapılır:
//
//	if errors.Is(err, pkg.ErrForbidden) { ... }
//
// Access Gate'in 401/403/404 ayrımı da bu sentinel'lar üzerinden akar:
// service katmanı sentinel döner, handler HTTP status'a çevirir.
package pkg

import "errors"

// Domain-level error'lar.
// Service katmanı bunları (gerekirse fmt.Errorf ile wrap'leyerek) döner,
// handler katmanı HTTP status code'larına map'ler.
var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrAlreadyExists = errors.New("already exists")
	ErrBadRequest    = errors.New("bad request")
	ErrInternal      = errors.New("internal error")
)
