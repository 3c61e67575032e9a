package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/brensch/pitchdf/game"
	"github.com/brensch/pitchdf/rules"
)

// SchemaVersion is written to every file's key/value metadata.
const SchemaVersion = "pitch_row_v1"

// PitchRow is one pitch together with the reconstructed game situation at the
// moment it was thrown.
//
// Base occupants hold MLBAM player ids, -1 when the base is empty. Pitch
// metrics the feed omits are -9999; integer codes are -1; labels are "NONE".
type PitchRow struct {
	GameID       string `parquet:"game_id,dict"`
	GamePk       int64  `parquet:"game_pk"`
	GameDate     string `parquet:"game_date,dict"`
	GameTimeMs   int64  `parquet:"game_time_ms"`
	HomeTeam     string `parquet:"home_team,dict"`
	AwayTeam     string `parquet:"away_team,dict"`
	DoubleHeader int32  `parquet:"double_header"`

	Inning    int32  `parquet:"inning"`
	Half      string `parquet:"half,dict"`
	Outs      int32  `parquet:"outs"`
	Balls     int32  `parquet:"balls"`
	Strikes   int32  `parquet:"strikes"`
	First     int64  `parquet:"on_1b"`
	Second    int64  `parquet:"on_2b"`
	Third     int64  `parquet:"on_3b"`
	BaseState int32  `parquet:"base_state"`

	HomeScore            int32 `parquet:"home_score"`
	AwayScore            int32 `parquet:"away_score"`
	HomeScoreAfterAB     int32 `parquet:"home_score_after_ab"`
	AwayScoreAfterAB     int32 `parquet:"away_score_after_ab"`
	HomeScoreAfterInning int32 `parquet:"home_score_after_inning"`
	AwayScoreAfterInning int32 `parquet:"away_score_after_inning"`

	Batter     int64  `parquet:"batter"`
	Pitcher    int64  `parquet:"pitcher"`
	BatSide    string `parquet:"bat_side,dict"`
	PitchHand  string `parquet:"pitch_hand,dict"`
	PitchCount int32  `parquet:"pitch_count"`
	AtBatIndex int32  `parquet:"at_bat_index"`
	Umpire     int64  `parquet:"umpire"`
	Event      string `parquet:"event,dict"`

	Description string `parquet:"description,dict"`
	Code        string `parquet:"code,dict"`
	PitchType   string `parquet:"pitch_type,dict"`

	X                float64 `parquet:"x"`
	Y                float64 `parquet:"y"`
	PX               float64 `parquet:"px"`
	PZ               float64 `parquet:"pz"`
	PfxX             float64 `parquet:"pfx_x"`
	PfxZ             float64 `parquet:"pfx_z"`
	X0               float64 `parquet:"x0"`
	Y0               float64 `parquet:"y0"`
	Z0               float64 `parquet:"z0"`
	VX0              float64 `parquet:"vx0"`
	VY0              float64 `parquet:"vy0"`
	VZ0              float64 `parquet:"vz0"`
	AX               float64 `parquet:"ax"`
	AY               float64 `parquet:"ay"`
	AZ               float64 `parquet:"az"`
	BreakY           float64 `parquet:"break_y"`
	BreakAngle       float64 `parquet:"break_angle"`
	BreakLength      float64 `parquet:"break_length"`
	SpinDirection    float64 `parquet:"spin_dir"`
	SpinRate         float64 `parquet:"spin_rate"`
	StartSpeed       float64 `parquet:"start_speed"`
	EndSpeed         float64 `parquet:"end_speed"`
	StrikeZoneTop    float64 `parquet:"sz_top"`
	StrikeZoneBottom float64 `parquet:"sz_bot"`
	Zone             int32   `parquet:"zone"`
	NastyFactor      int32   `parquet:"nasty"`
	TypeConfidence   float64 `parquet:"type_confidence"`

	HasHit        bool    `parquet:"has_hit"`
	HitX          float64 `parquet:"hit_x"`
	HitY          float64 `parquet:"hit_y"`
	LaunchAngle   float64 `parquet:"launch_angle"`
	LaunchSpeed   float64 `parquet:"launch_speed"`
	TotalDistance float64 `parquet:"total_distance"`
	HitLocation   int32   `parquet:"hit_location"`
	HitHardness   string  `parquet:"hit_hardness,dict"`
	HitTrajectory string  `parquet:"hit_trajectory,dict"`
}

// NewPitchRow flattens a snapshot and its pitch into a row.
func NewPitchRow(s game.Snapshot, p rules.Pitch) PitchRow {
	return PitchRow{
		GameID:       s.GameID,
		GamePk:       s.GamePk,
		GameDate:     s.Date.Format(time.DateOnly),
		GameTimeMs:   s.Date.UnixMilli(),
		HomeTeam:     s.HomeTeam,
		AwayTeam:     s.AwayTeam,
		DoubleHeader: int32(s.DoubleHeader),

		Inning:    int32(s.Inning),
		Half:      string(s.Half),
		Outs:      int32(s.Outs),
		Balls:     int32(s.Balls),
		Strikes:   int32(s.Strikes),
		First:     s.First,
		Second:    s.Second,
		Third:     s.Third,
		BaseState: int32(s.BaseState),

		HomeScore:            int32(s.HomeScore),
		AwayScore:            int32(s.AwayScore),
		HomeScoreAfterAB:     int32(s.HomeScoreAfterAB),
		AwayScoreAfterAB:     int32(s.AwayScoreAfterAB),
		HomeScoreAfterInning: int32(s.HomeScoreAfterInning),
		AwayScoreAfterInning: int32(s.AwayScoreAfterInning),

		Batter:     s.Batter,
		Pitcher:    s.Pitcher,
		BatSide:    s.BatSide,
		PitchHand:  s.PitchHand,
		PitchCount: int32(s.PitchCount),
		AtBatIndex: int32(s.AtBatIndex),
		Umpire:     s.Umpire,
		Event:      s.Event,

		Description: p.Description,
		Code:        p.Code,
		PitchType:   p.PitchType,

		X:                p.X,
		Y:                p.Y,
		PX:               p.PX,
		PZ:               p.PZ,
		PfxX:             p.PfxX,
		PfxZ:             p.PfxZ,
		X0:               p.X0,
		Y0:               p.Y0,
		Z0:               p.Z0,
		VX0:              p.VX0,
		VY0:              p.VY0,
		VZ0:              p.VZ0,
		AX:               p.AX,
		AY:               p.AY,
		AZ:               p.AZ,
		BreakY:           p.BreakY,
		BreakAngle:       p.BreakAngle,
		BreakLength:      p.BreakLength,
		SpinDirection:    p.SpinDirection,
		SpinRate:         p.SpinRate,
		StartSpeed:       p.StartSpeed,
		EndSpeed:         p.EndSpeed,
		StrikeZoneTop:    p.StrikeZoneTop,
		StrikeZoneBottom: p.StrikeZoneBottom,
		Zone:             int32(p.Zone),
		NastyFactor:      int32(p.NastyFactor),
		TypeConfidence:   p.TypeConfidence,

		HasHit:        p.HasHit,
		HitX:          p.HitX,
		HitY:          p.HitY,
		LaunchAngle:   p.LaunchAngle,
		LaunchSpeed:   p.LaunchSpeed,
		TotalDistance: p.TotalDistance,
		HitLocation:   int32(p.HitLocation),
		HitHardness:   p.HitHardness,
		HitTrajectory: p.HitTrajectory,
	}
}

// RowsFromRecords converts buffered records into rows.
func RowsFromRecords(records []rules.PitchRecord) []PitchRow {
	rows := make([]PitchRow, len(records))
	for i, r := range records {
		rows[i] = NewPitchRow(r.State, r.Pitch)
	}
	return rows
}

// WriteBatchParquetAtomic writes a Parquet file into outDir/tmp and then
// atomically moves it into outDir. prefix names the file, e.g. "batch" or
// "debug_565796".
//
// Readers globbing outDir never observe partially-written files.
func WriteBatchParquetAtomic(outDir, prefix, runID string, rows []PitchRow) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("%s_%d.parquet", prefix, time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", SchemaVersion),
		parquet.KeyValueMetadata("run_id", runID),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}

	return finalPath, nil
}

// ReadPitchRows reads every row of a pitch parquet file.
func ReadPitchRows(path string) ([]PitchRow, error) {
	rows, err := parquet.ReadFile[PitchRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows, nil
}
