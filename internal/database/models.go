package database

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Player represents a record in the 'Player' table.
type Player struct {
	ID              int64    `json:"id"`
	PlayerAPIID     int64    `json:"player_api_id"`
	PlayerName      string   `json:"player_name"`
	PlayerFifaAPIID *int64   `json:"player_fifa_api_id"`
	Birthday        *string  `json:"birthday"`
	Height          *float64 `json:"height"`
	Weight          *float64 `json:"weight"`
}

// PlayerColumns lists the Player columns in the order ScanDest expects.
const PlayerColumns = "id, player_api_id, player_name, player_fifa_api_id, birthday, height, weight"

// ScanDest returns scan destinations matching PlayerColumns.
func (p *Player) ScanDest() []any {
	return []any{&p.ID, &p.PlayerAPIID, &p.PlayerName, &p.PlayerFifaAPIID, &p.Birthday, &p.Height, &p.Weight}
}

// Ratings holds the skill columns of a 'Player_Attributes' snapshot.
// Every column is nullable in the source dataset.
type Ratings struct {
	OverallRating     *int64  `json:"overall_rating"`
	Potential         *int64  `json:"potential"`
	PreferredFoot     *string `json:"preferred_foot"`
	AttackingWorkRate *string `json:"attacking_work_rate"`
	DefensiveWorkRate *string `json:"defensive_work_rate"`
	Crossing          *int64  `json:"crossing"`
	Finishing         *int64  `json:"finishing"`
	HeadingAccuracy   *int64  `json:"heading_accuracy"`
	ShortPassing      *int64  `json:"short_passing"`
	Volleys           *int64  `json:"volleys"`
	Dribbling         *int64  `json:"dribbling"`
	Curve             *int64  `json:"curve"`
	FreeKickAccuracy  *int64  `json:"free_kick_accuracy"`
	LongPassing       *int64  `json:"long_passing"`
	BallControl       *int64  `json:"ball_control"`
	Acceleration      *int64  `json:"acceleration"`
	SprintSpeed       *int64  `json:"sprint_speed"`
	Agility           *int64  `json:"agility"`
	Reactions         *int64  `json:"reactions"`
	Balance           *int64  `json:"balance"`
	ShotPower         *int64  `json:"shot_power"`
	Jumping           *int64  `json:"jumping"`
	Stamina           *int64  `json:"stamina"`
	Strength          *int64  `json:"strength"`
	LongShots         *int64  `json:"long_shots"`
	Aggression        *int64  `json:"aggression"`
	Interceptions     *int64  `json:"interceptions"`
	Positioning       *int64  `json:"positioning"`
	Vision            *int64  `json:"vision"`
	Penalties         *int64  `json:"penalties"`
	Marking           *int64  `json:"marking"`
	StandingTackle    *int64  `json:"standing_tackle"`
	SlidingTackle     *int64  `json:"sliding_tackle"`
	GkDiving          *int64  `json:"gk_diving"`
	GkHandling        *int64  `json:"gk_handling"`
	GkKicking         *int64  `json:"gk_kicking"`
	GkPositioning     *int64  `json:"gk_positioning"`
	GkReflexes        *int64  `json:"gk_reflexes"`
}

// RatingColumns lists the Ratings columns in the order ScanDest expects.
const RatingColumns = "overall_rating, potential, preferred_foot, attacking_work_rate, defensive_work_rate, " +
	"crossing, finishing, heading_accuracy, short_passing, volleys, dribbling, curve, free_kick_accuracy, " +
	"long_passing, ball_control, acceleration, sprint_speed, agility, reactions, balance, shot_power, jumping, " +
	"stamina, strength, long_shots, aggression, interceptions, positioning, vision, penalties, marking, " +
	"standing_tackle, sliding_tackle, gk_diving, gk_handling, gk_kicking, gk_positioning, gk_reflexes"

// ScanDest returns scan destinations matching RatingColumns.
func (r *Ratings) ScanDest() []any {
	return []any{
		&r.OverallRating, &r.Potential, &r.PreferredFoot, &r.AttackingWorkRate, &r.DefensiveWorkRate,
		&r.Crossing, &r.Finishing, &r.HeadingAccuracy, &r.ShortPassing, &r.Volleys, &r.Dribbling, &r.Curve, &r.FreeKickAccuracy,
		&r.LongPassing, &r.BallControl, &r.Acceleration, &r.SprintSpeed, &r.Agility, &r.Reactions, &r.Balance, &r.ShotPower, &r.Jumping,
		&r.Stamina, &r.Strength, &r.LongShots, &r.Aggression, &r.Interceptions, &r.Positioning, &r.Vision, &r.Penalties, &r.Marking,
		&r.StandingTackle, &r.SlidingTackle, &r.GkDiving, &r.GkHandling, &r.GkKicking, &r.GkPositioning, &r.GkReflexes,
	}
}

// PlayerAttributes represents a dated record in the 'Player_Attributes' table.
type PlayerAttributes struct {
	ID              int64  `json:"id"`
	PlayerFifaAPIID *int64 `json:"player_fifa_api_id"`
	PlayerAPIID     int64  `json:"player_api_id"`
	Date            string `json:"date"`
	Ratings
}

// Team represents a record in the 'Team' table.
type Team struct {
	ID            int64   `json:"id"`
	TeamAPIID     int64   `json:"team_api_id"`
	TeamFifaAPIID *int64  `json:"team_fifa_api_id"`
	TeamLongName  string  `json:"team_long_name"`
	TeamShortName *string `json:"team_short_name"`
}

// TeamColumns lists the Team columns in the order ScanDest expects.
const TeamColumns = "id, team_api_id, team_fifa_api_id, team_long_name, team_short_name"

// ScanDest returns scan destinations matching TeamColumns.
func (t *Team) ScanDest() []any {
	return []any{&t.ID, &t.TeamAPIID, &t.TeamFifaAPIID, &t.TeamLongName, &t.TeamShortName}
}

// TeamTactics holds the tactical columns of a 'Team_Attributes' snapshot.
type TeamTactics struct {
	BuildUpPlaySpeed               *int64  `json:"buildUpPlaySpeed"`
	BuildUpPlaySpeedClass          *string `json:"buildUpPlaySpeedClass"`
	BuildUpPlayDribbling           *int64  `json:"buildUpPlayDribbling"`
	BuildUpPlayDribblingClass      *string `json:"buildUpPlayDribblingClass"`
	BuildUpPlayPassing             *int64  `json:"buildUpPlayPassing"`
	BuildUpPlayPassingClass        *string `json:"buildUpPlayPassingClass"`
	BuildUpPlayPositioningClass    *string `json:"buildUpPlayPositioningClass"`
	ChanceCreationPassing          *int64  `json:"chanceCreationPassing"`
	ChanceCreationPassingClass     *string `json:"chanceCreationPassingClass"`
	ChanceCreationCrossing         *int64  `json:"chanceCreationCrossing"`
	ChanceCreationCrossingClass    *string `json:"chanceCreationCrossingClass"`
	ChanceCreationShooting         *int64  `json:"chanceCreationShooting"`
	ChanceCreationShootingClass    *string `json:"chanceCreationShootingClass"`
	ChanceCreationPositioningClass *string `json:"chanceCreationPositioningClass"`
	DefencePressure                *int64  `json:"defencePressure"`
	DefencePressureClass           *string `json:"defencePressureClass"`
	DefenceAggression              *int64  `json:"defenceAggression"`
	DefenceAggressionClass         *string `json:"defenceAggressionClass"`
	DefenceTeamWidth               *int64  `json:"defenceTeamWidth"`
	DefenceTeamWidthClass          *string `json:"defenceTeamWidthClass"`
	DefenceDefenderLineClass       *string `json:"defenceDefenderLineClass"`
}

// TacticColumns lists the TeamTactics columns in the order ScanDest expects.
const TacticColumns = "buildUpPlaySpeed, buildUpPlaySpeedClass, buildUpPlayDribbling, buildUpPlayDribblingClass, " +
	"buildUpPlayPassing, buildUpPlayPassingClass, buildUpPlayPositioningClass, chanceCreationPassing, " +
	"chanceCreationPassingClass, chanceCreationCrossing, chanceCreationCrossingClass, chanceCreationShooting, " +
	"chanceCreationShootingClass, chanceCreationPositioningClass, defencePressure, defencePressureClass, " +
	"defenceAggression, defenceAggressionClass, defenceTeamWidth, defenceTeamWidthClass, defenceDefenderLineClass"

// ScanDest returns scan destinations matching TacticColumns.
func (t *TeamTactics) ScanDest() []any {
	return []any{
		&t.BuildUpPlaySpeed, &t.BuildUpPlaySpeedClass, &t.BuildUpPlayDribbling, &t.BuildUpPlayDribblingClass,
		&t.BuildUpPlayPassing, &t.BuildUpPlayPassingClass, &t.BuildUpPlayPositioningClass, &t.ChanceCreationPassing,
		&t.ChanceCreationPassingClass, &t.ChanceCreationCrossing, &t.ChanceCreationCrossingClass, &t.ChanceCreationShooting,
		&t.ChanceCreationShootingClass, &t.ChanceCreationPositioningClass, &t.DefencePressure, &t.DefencePressureClass,
		&t.DefenceAggression, &t.DefenceAggressionClass, &t.DefenceTeamWidth, &t.DefenceTeamWidthClass, &t.DefenceDefenderLineClass,
	}
}

// League represents a record in the 'League' table joined with its country.
type League struct {
	ID          int64  `json:"id"`
	CountryID   int64  `json:"country_id"`
	Name        string `json:"name"`
	CountryName string `json:"country_name"` // populated by the join in ListLeagues
}

// User represents a record in the 'users' table of the auth database.
// Password holds a bcrypt hash and is empty for accounts created via OAuth.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Roles a user may hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ExternalMatch represents a cached row from the third-party match feed.
type ExternalMatch struct {
	ID          int64           `json:"id"`
	ExternalID  string          `json:"external_id"`
	Competition sql.NullString  `json:"-"`
	HomeTeam    sql.NullString  `json:"-"`
	AwayTeam    sql.NullString  `json:"-"`
	HomeScore   sql.NullInt64   `json:"-"`
	AwayScore   sql.NullInt64   `json:"-"`
	Status      sql.NullString  `json:"-"`
	UtcDate     sql.NullString  `json:"-"`
	Raw         json.RawMessage `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
}
