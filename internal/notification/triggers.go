package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"lawwarden.io/warden/internal/domain"
	"lawwarden.io/warden/internal/pkg/logger"
)

// Authorities looks up the authority that resolved a crime.
type Authorities interface {
	Authority(id domain.AuthorityID) (*domain.LegalAuthority, error)
}

// NodeNames gives nodes their display names. Optional.
type NodeNames interface {
	Name(id domain.NodeID) (string, bool)
}

// Triggers turns enforcement outcomes into notices for the offender.
// Offenders are only told when their authority lets players know their crimes.
type Triggers struct {
	sender      Sender
	authorities Authorities
	names       NodeNames
}

// NewTriggers creates a new notification trigger service. names may be nil.
func NewTriggers(sender Sender, authorities Authorities, names NodeNames) *Triggers {
	return &Triggers{sender: sender, authorities: authorities, names: names}
}

// Register subscribes the triggers to CRIME_RESOLVED.
func (t *Triggers) Register(d *domain.EventDispatcher) {
	d.Register(domain.EventCrimeResolved, t.HandleCrimeResolved)
}

// HandleCrimeResolved notifies the offender of a resolved crime. Delivery
// failures are logged and never fail the enforcing patrol.
func (t *Triggers) HandleCrimeResolved(ctx context.Context, event *domain.DomainEvent) error {
	var p domain.CrimeResolvedPayload
	if err := event.DecodePayload(&p); err != nil {
		return err
	}
	auth, err := t.authorities.Authority(p.AuthorityID)
	if err != nil {
		logger.Debug("crime notice skipped: authority gone",
			zap.String("crime_id", string(p.CrimeID)),
			zap.String("authority_id", string(p.AuthorityID)),
		)
		return nil
	}
	if !auth.PlayersKnowTheirCrimes {
		return nil
	}

	params := t.noticeFor(auth.Name, p)
	if err := t.sender.Send(ctx, params); err != nil {
		logger.Error("failed to send crime notice",
			zap.String("crime_id", string(p.CrimeID)),
			zap.String("offender", string(p.Offender)),
			zap.String("type", params.Type),
			zap.Error(err),
		)
	}
	return nil
}

func (t *Triggers) noticeFor(authority string, p domain.CrimeResolvedPayload) Params {
	where := t.nodeName(p.Node)
	params := Params{
		RecipientID: string(p.Offender),
		ResourceID:  string(p.CrimeID),
	}
	switch p.Kind {
	case domain.ResolutionArrested:
		params.Type = TypeCrimeArrested
		params.Title = fmt.Sprintf("Arrested by the %s", authority)
		params.Message = fmt.Sprintf("You were arrested at %s", where)
		if p.HoldingNode != nil {
			params.Message += fmt.Sprintf(" and taken to %s", t.nodeName(*p.HoldingNode))
		}
		params.Message += "."
	case domain.ResolutionFined:
		params.Type = TypeCrimeFined
		params.Title = fmt.Sprintf("Fined by the %s", authority)
		params.Message = fmt.Sprintf("You were fined for a crime at %s.", where)
	case domain.ResolutionIgnored:
		params.Type = TypeCrimeIgnored
		params.Title = fmt.Sprintf("The %s looked the other way", authority)
		params.Message = fmt.Sprintf("A patrol saw your crime at %s and let it pass.", where)
	default:
		params.Type = TypeCrimeWarned
		params.Title = fmt.Sprintf("Warned by the %s", authority)
		params.Message = fmt.Sprintf("You were warned for a crime at %s.", where)
	}
	return params
}

func (t *Triggers) nodeName(id domain.NodeID) string {
	if t.names != nil {
		if name, ok := t.names.Name(id); ok && name != "" {
			return name
		}
	}
	return string(id)
}
