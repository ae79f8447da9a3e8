package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/plugin-portal/pkg/httputil"
	"github.com/platinummonkey/plugin-portal/pkg/packages"
)

// KeyHandlers publishes the package signing key
type KeyHandlers struct {
	signer *packages.Signer
}

// NewKeyHandlers creates key handlers
func NewKeyHandlers(signer *packages.Signer) *KeyHandlers {
	return &KeyHandlers{signer: signer}
}

// RegisterRoutes registers key routes
func (h *KeyHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/keys/signing", h.signingKey).Methods("GET")
}

// signingKey handles GET /keys/signing
func (h *KeyHandlers) signingKey(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, SigningKeyResponse{
		Algorithm: packages.SignatureAlgorithm,
		PublicKey: h.signer.EncodedPublicKey(),
	})
}
