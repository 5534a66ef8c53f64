package protocol

// WELCOME (server -> stream client), sent once after the upgrade.
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Session         string         `json:"session"`
	Tick            uint64         `json:"tick"`
	Dimensions      []string       `json:"dimensions"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type CatalogDigests struct {
	BlockPalette PaletteDigest `json:"block_palette"`
	ItemsDigest  string        `json:"items_digest"`
	TuningDigest string        `json:"tuning_digest,omitempty"`
}

type PaletteDigest struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// EVENT (server -> stream client)
type EventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Event           any    `json:"event"`
}

// Admin request bodies. Positions are block coordinates [x, y, z].

type DeactivateReq struct {
	Address   []string `json:"address,omitempty"`
	Dimension string   `json:"dimension,omitempty"`
	Pos       *[3]int  `json:"pos,omitempty"`
}

type PowerReq struct {
	Mode      string `json:"mode"`
	Dimension string `json:"dimension"`
	Pos       [3]int `json:"pos"`
	Amount    int    `json:"amount,omitempty"`
}

type ClearReq struct {
	Confirmed bool `json:"confirmed"`
}

type TeleportReq struct {
	Entity    string `json:"entity"`
	Dimension string `json:"dimension"`
	Pos       [3]int `json:"pos"`
}

type BlockReq struct {
	Dimension string `json:"dimension"`
	Pos       [3]int `json:"pos"`
	// Block is a resource id; empty clears the cell.
	Block string `json:"block"`
}

type InteractReq struct {
	Dimension string `json:"dimension"`
	Pos       [3]int `json:"pos"`
	Side      string `json:"side"`
	Sneaking  bool   `json:"sneaking,omitempty"`
}

type DispenseReq struct {
	Dimension string `json:"dimension"`
	Pos       [3]int `json:"pos"`
	Facing    string `json:"facing"`
}

type SpawnReq struct {
	ID        string  `json:"id,omitempty"`
	Kind      string  `json:"kind"`
	Name      string  `json:"name,omitempty"`
	Dimension string  `json:"dimension"`
	Pos       [3]int  `json:"pos"`
	Yaw       float64 `json:"yaw,omitempty"`
	Height    float64 `json:"height,omitempty"`
	Creative  bool    `json:"creative,omitempty"`
	Item      string  `json:"item,omitempty"`
	Count     int     `json:"count,omitempty"`
}

type MoveReq struct {
	Entity string `json:"entity"`
	Pos    [3]int `json:"pos"`
}
