package game

// Event names sent through the Notifier.
const (
	EventMatchCreated         = "match_created"
	EventMatchStart           = "match_start"
	EventInitialHand          = "initial_hand"
	EventOpponentDrew         = "opponent_drew"
	EventCardDrawn            = "card_drawn"
	EventManaConverted        = "mana_converted"
	EventCardPlayed           = "card_played"
	EventOpponentCardPlayed   = "opponent_card_played"
	EventStanceChanged        = "stance_changed"
	EventFightResult          = "fight_result"
	EventPlayerAttacked       = "player_attacked"
	EventTurnEnded            = "turn_ended"
	EventNewTurn              = "new_turn"
	EventMatchWon             = "match_won"
	EventMatchLost            = "match_lost"
	EventMatchDraw            = "match_draw"
	EventMatchExpired         = "match_expired"
	EventOpponentDisconnected = "opponent_disconnected"
	EventState                = "state"
	EventError                = "error"
)

type MatchCreated struct {
	SessionID string `json:"session_id"`
	Private   bool   `json:"private"`
}

type MatchStart struct {
	SessionID string `json:"session_id"`
	Opponent  string `json:"opponent"`
	FirstTurn bool   `json:"first_turn"`
	Turn      int    `json:"turn"`
	Health    int    `json:"health"`
	Mana      int    `json:"mana"`
	DeckSize  int    `json:"deck_size"`
}

type InitialHand struct {
	Cards    []CardView `json:"cards"`
	DrawPile int        `json:"draw_pile"`
}

type OpponentDrew struct {
	Count    int `json:"count"`
	DrawPile int `json:"draw_pile"`
}

type CardDrawn struct {
	Card     CardView `json:"card"`
	DrawPile int      `json:"draw_pile"`
}

type ManaConverted struct {
	PlayerID        string `json:"player_id"`
	Amount          int    `json:"amount"`
	Health          int    `json:"health"`
	Mana            int    `json:"mana"`
	LockedUntilTurn int    `json:"locked_until_turn"`
}

type CardPlayed struct {
	PlayerID string   `json:"player_id"`
	Card     CardView `json:"card"`
}

type StanceChanged struct {
	PlayerID string   `json:"player_id"`
	Card     CardView `json:"card"`
}

// FightResult reports a resolved fight with both cards as they are afterwards.
type FightResult struct {
	AttackerID           string   `json:"attacker_id"`
	DefenderID           string   `json:"defender_id"`
	AttackerCard         CardView `json:"attacker_card"`
	DefenderCard         CardView `json:"defender_card"`
	AttackerValue        int      `json:"attacker_value"`
	DefenderValue        int      `json:"defender_value"`
	AttackerDies         bool     `json:"attacker_dies"`
	DefenderDies         bool     `json:"defender_dies"`
	AttackerCardDamage   int      `json:"attacker_card_damage"`
	DefenderCardDamage   int      `json:"defender_card_damage"`
	AttackerPlayerDamage int      `json:"attacker_player_damage"`
	DefenderPlayerDamage int      `json:"defender_player_damage"`
	EffectsConsumed      []string `json:"effects_consumed,omitempty"`
	EffectsOnAttacker    []string `json:"effects_on_attacker,omitempty"`
	AttackerHealth       int      `json:"attacker_health"`
	DefenderHealth       int      `json:"defender_health"`
}

type PlayerAttacked struct {
	AttackerID string `json:"attacker_id"`
	CardKey    string `json:"card_key"`
	Damage     int    `json:"damage"`
	Health     int    `json:"health"`
}

type TurnEnded struct {
	PlayerID string `json:"player_id"`
}

type NewTurn struct {
	Turn     int  `json:"turn"`
	Mana     int  `json:"mana"`
	Health   int  `json:"health"`
	YourMove bool `json:"your_move"`
}

type MatchOver struct {
	SessionID string `json:"session_id"`
	Winner    string `json:"winner,omitempty"`
	Health    int    `json:"health"`
}

type SessionNotice struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

// ErrorNotice is sent to a connection whose action was rejected.
type ErrorNotice struct {
	Action  string `json:"action"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type outbound struct {
	conn    ConnID
	event   string
	payload any
}

// outbox collects events while the session lock is held; they are delivered
// after it is released.
type outbox []outbound

func (o *outbox) send(conn ConnID, event string, payload any) {
	*o = append(*o, outbound{conn: conn, event: event, payload: payload})
}
