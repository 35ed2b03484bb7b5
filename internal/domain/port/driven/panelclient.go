package driven

import (
	"context"

	"github.com/mgrist/acm-roster/internal/domain/model"
)

// PanelClient defines the driven port for the chapter administration panel.
type PanelClient interface {
	// Login performs the login exchange and returns the correlation pair the
	// panel issued. Rejected credentials return model.ErrAuthentication.
	Login(ctx context.Context, cred model.Credential) (model.Session, error)

	// ExportRoster downloads and decodes the chapter roster for the given
	// session. The header row is never returned as a member. A payload without
	// usable rows returns model.ErrParse; tokens the panel no longer accepts
	// return model.ErrSessionExpired.
	ExportRoster(ctx context.Context, session model.Session) ([]model.Member, error)
}
