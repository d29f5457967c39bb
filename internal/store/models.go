package store

// Session modes.
const (
	ModeShell     = "shell"
	ModeAuxiliary = "auxiliary"
)

// Pane types.
const (
	PaneTypeProject = "project"
	PaneTypeAdhoc   = "adhoc"
)

// Auxiliary process states. Transitions go through the conditional
// UpdateAuxiliaryState so concurrent starters race on the database row, not
// on an in-process lock.
const (
	AuxStateNotStarted = "not_started"
	AuxStateStarting   = "starting"
	AuxStateRunning    = "running"
	AuxStateStopped    = "stopped"
	AuxStateError      = "error"
)

// Session is the durable record of one terminal. The row outlives the mux
// session it mirrors: is_alive flips instead of the row being deleted, so a
// later connect can resurrect it. Optional string columns use '' for unset.
type Session struct {
	ID                string `gorm:"column:id;primaryKey"`
	Name              string `gorm:"column:name;not null;default:'';index"`
	ProjectID         string `gorm:"column:project_id;not null;default:''"`
	WorkingDir        string `gorm:"column:working_dir;not null;default:''"`
	UserID            string `gorm:"column:user_id;not null;default:''"`
	Mode              string `gorm:"column:mode;not null;default:'shell';check:chk_sessions_mode,mode IN ('shell','auxiliary')"`
	SessionNumber     int    `gorm:"column:session_number;not null;default:1"`
	IsAlive           bool   `gorm:"column:is_alive;not null;default:true"`
	CreatedAt         int64  `gorm:"column:created_at;not null;default:0"`
	LastAccessedAt    int64  `gorm:"column:last_accessed_at;not null;default:0"`
	LastTargetSession string `gorm:"column:last_target_session;not null;default:''"`
	AuxiliaryState    string `gorm:"column:auxiliary_state;not null;default:'not_started';check:chk_sessions_aux_state,auxiliary_state IN ('not_started','starting','running','stopped','error')"`
	PaneID            string `gorm:"column:pane_id;not null;default:''"`
}

func (Session) TableName() string { return "sessions" }

// Pane groups one shell session (adhoc) or a shell plus an auxiliary session
// (project) for the UI grid.
type Pane struct {
	ID            string  `gorm:"column:id;primaryKey"`
	PaneType      string  `gorm:"column:pane_type;not null;default:'adhoc';check:chk_panes_type,pane_type IN ('project','adhoc')"`
	ProjectID     string  `gorm:"column:project_id;not null;default:''"`
	PaneOrder     int     `gorm:"column:pane_order;not null;default:0"`
	PaneName      string  `gorm:"column:pane_name;not null;default:''"`
	ActiveMode    string  `gorm:"column:active_mode;not null;default:'shell';check:chk_panes_active_mode,active_mode IN ('shell','auxiliary')"`
	WidthPercent  float64 `gorm:"column:width_percent;not null;default:0"`
	HeightPercent float64 `gorm:"column:height_percent;not null;default:0"`
	GridRow       int     `gorm:"column:grid_row;not null;default:0"`
	GridCol       int     `gorm:"column:grid_col;not null;default:0"`
	CreatedAt     int64   `gorm:"column:created_at;not null;default:0"`
}

func (Pane) TableName() string { return "panes" }

// ProjectSettings is keyed by project id. Enabled defaults to false so a
// project shows up in the terminal only after an explicit opt-in; the zero
// struct therefore round-trips through the upsert unchanged.
type ProjectSettings struct {
	ProjectID    string `gorm:"column:project_id;primaryKey"`
	Enabled      bool   `gorm:"column:enabled;not null;default:false"`
	ActiveMode   string `gorm:"column:active_mode;not null;default:'shell'"`
	DisplayOrder int    `gorm:"column:display_order;not null;default:0"`
	UpdatedAt    int64  `gorm:"column:updated_at;not null;default:0"`
}

func (ProjectSettings) TableName() string { return "project_settings" }
