package registry

// Prize identifies an externally-custodied asset. The custodian service
// keeps physical custody until the engine instructs the release.
type Prize struct {
	Custodian string
	AssetID   string
}

type Status int32

const (
	Opened Status = iota
	Closed
)

func (s Status) String() string {
	if s == Opened {
		return "opened"
	}
	return "closed"
}

// Raffle is the aggregate record of one ticket sale. Participants are kept
// in insertion order and are not deduplicated: an identity that submits
// multiple valid entries holds multiple tickets.
type Raffle struct {
	Creator      string
	Prize        Prize
	Capacity     uint32
	TicketPrice  uint64
	Participants []string
	Status       Status
	Winner       string
}

// Full reports whether the ticket quota is met.
func (r *Raffle) Full() bool {
	return uint32(len(r.Participants)) == r.Capacity
}

func (r *Raffle) HasWinner() bool {
	return r.Winner != ""
}

type OpenRaffle struct {
	ID     uint64
	Raffle *Raffle
}
