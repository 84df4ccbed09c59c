package commands

// Game selects the command set of a target game.
type Game uint8

const (
	GameGTA3 Game = iota
	GameGTAVC
	GameGTASA
)

// saOnly lists commands present in the databases of all three games but
// only executable by San Andreas.
var saOnly = map[string]bool{
	"SWITCH_START":              true,
	"SWITCH_CONTINUED":          true,
	"SET_VAR_TEXT_LABEL":        true,
	"SET_LVAR_TEXT_LABEL":       true,
	"SAVE_STRING_TO_DEBUG_FILE": true,
	"REGISTER_STREAMED_SCRIPT":  true,
}

func p(kind ParamKind) Param               { return Param{Kind: kind} }
func pe(kind ParamKind, enum string) Param { return Param{Kind: kind, Enum: enum} }
func pent(kind ParamKind, entity string) Param {
	return Param{Kind: kind, Entity: entity}
}
func pout(kind ParamKind, entity string) Param {
	return Param{Kind: kind, Entity: entity, Out: true}
}

type defCommand struct {
	name    string
	opcode  uint16
	keyword bool
	params  []Param
}

// defaultCommands is the built-in command catalog, a subset of the games'
// databases large enough to drive the whole pipeline without an XML
// config on disk. Opcodes follow the SCM instruction set.
var defaultCommands = []defCommand{
	{"NOP", 0x0000, false, nil},
	{"WAIT", 0x0001, false, []Param{p(ParamInt)}},
	{"GOTO", 0x0002, true, []Param{p(ParamLabel)}},

	{"SET_VAR_INT", 0x0004, false, []Param{p(ParamVarInt), p(ParamInt)}},
	{"SET_VAR_FLOAT", 0x0005, false, []Param{p(ParamVarFloat), p(ParamFloat)}},
	{"SET_LVAR_INT", 0x0006, false, []Param{p(ParamLVarInt), p(ParamInt)}},
	{"SET_LVAR_FLOAT", 0x0007, false, []Param{p(ParamLVarFloat), p(ParamFloat)}},

	{"ADD_VAL_TO_INT_VAR", 0x0008, false, []Param{p(ParamVarInt), p(ParamInt)}},
	{"ADD_VAL_TO_FLOAT_VAR", 0x0009, false, []Param{p(ParamVarFloat), p(ParamFloat)}},
	{"ADD_VAL_TO_INT_LVAR", 0x000A, false, []Param{p(ParamLVarInt), p(ParamInt)}},
	{"ADD_VAL_TO_FLOAT_LVAR", 0x000B, false, []Param{p(ParamLVarFloat), p(ParamFloat)}},

	{"SUB_VAL_FROM_INT_VAR", 0x000C, false, []Param{p(ParamVarInt), p(ParamInt)}},
	{"SUB_VAL_FROM_FLOAT_VAR", 0x000D, false, []Param{p(ParamVarFloat), p(ParamFloat)}},
	{"SUB_VAL_FROM_INT_LVAR", 0x000E, false, []Param{p(ParamLVarInt), p(ParamInt)}},
	{"SUB_VAL_FROM_FLOAT_LVAR", 0x000F, false, []Param{p(ParamLVarFloat), p(ParamFloat)}},

	{"MULT_INT_VAR_BY_VAL", 0x0010, false, []Param{p(ParamVarInt), p(ParamInt)}},
	{"MULT_FLOAT_VAR_BY_VAL", 0x0011, false, []Param{p(ParamVarFloat), p(ParamFloat)}},
	{"MULT_INT_LVAR_BY_VAL", 0x0012, false, []Param{p(ParamLVarInt), p(ParamInt)}},
	{"MULT_FLOAT_LVAR_BY_VAL", 0x0013, false, []Param{p(ParamLVarFloat), p(ParamFloat)}},

	{"DIV_INT_VAR_BY_VAL", 0x0014, false, []Param{p(ParamVarInt), p(ParamInt)}},
	{"DIV_FLOAT_VAR_BY_VAL", 0x0015, false, []Param{p(ParamVarFloat), p(ParamFloat)}},
	{"DIV_INT_LVAR_BY_VAL", 0x0016, false, []Param{p(ParamLVarInt), p(ParamInt)}},
	{"DIV_FLOAT_LVAR_BY_VAL", 0x0017, false, []Param{p(ParamLVarFloat), p(ParamFloat)}},

	{"IS_INT_VAR_GREATER_THAN_NUMBER", 0x0018, false, []Param{p(ParamVarInt), p(ParamInt)}},
	{"IS_INT_LVAR_GREATER_THAN_NUMBER", 0x0019, false, []Param{p(ParamLVarInt), p(ParamInt)}},
	{"IS_NUMBER_GREATER_THAN_INT_VAR", 0x001A, false, []Param{p(ParamInt), p(ParamVarInt)}},
	{"IS_NUMBER_GREATER_THAN_INT_LVAR", 0x001B, false, []Param{p(ParamInt), p(ParamLVarInt)}},
	{"IS_INT_VAR_GREATER_THAN_INT_VAR", 0x001C, false, []Param{p(ParamVarInt), p(ParamVarInt)}},
	{"IS_INT_LVAR_GREATER_THAN_INT_LVAR", 0x001D, false, []Param{p(ParamLVarInt), p(ParamLVarInt)}},
	{"IS_INT_VAR_GREATER_THAN_INT_LVAR", 0x001E, false, []Param{p(ParamVarInt), p(ParamLVarInt)}},
	{"IS_INT_LVAR_GREATER_THAN_INT_VAR", 0x001F, false, []Param{p(ParamLVarInt), p(ParamVarInt)}},
	{"IS_FLOAT_VAR_GREATER_THAN_NUMBER", 0x0020, false, []Param{p(ParamVarFloat), p(ParamFloat)}},
	{"IS_FLOAT_LVAR_GREATER_THAN_NUMBER", 0x0021, false, []Param{p(ParamLVarFloat), p(ParamFloat)}},
	{"IS_NUMBER_GREATER_THAN_FLOAT_VAR", 0x0022, false, []Param{p(ParamFloat), p(ParamVarFloat)}},
	{"IS_NUMBER_GREATER_THAN_FLOAT_LVAR", 0x0023, false, []Param{p(ParamFloat), p(ParamLVarFloat)}},

	{"IS_INT_VAR_GREATER_OR_EQUAL_TO_NUMBER", 0x0028, false, []Param{p(ParamVarInt), p(ParamInt)}},
	{"IS_INT_LVAR_GREATER_OR_EQUAL_TO_NUMBER", 0x0029, false, []Param{p(ParamLVarInt), p(ParamInt)}},
	{"IS_NUMBER_GREATER_OR_EQUAL_TO_INT_VAR", 0x002A, false, []Param{p(ParamInt), p(ParamVarInt)}},
	{"IS_NUMBER_GREATER_OR_EQUAL_TO_INT_LVAR", 0x002B, false, []Param{p(ParamInt), p(ParamLVarInt)}},
	{"IS_INT_VAR_GREATER_OR_EQUAL_TO_INT_VAR", 0x002C, false, []Param{p(ParamVarInt), p(ParamVarInt)}},
	{"IS_INT_LVAR_GREATER_OR_EQUAL_TO_INT_LVAR", 0x002D, false, []Param{p(ParamLVarInt), p(ParamLVarInt)}},
	{"IS_INT_VAR_GREATER_OR_EQUAL_TO_INT_LVAR", 0x002E, false, []Param{p(ParamVarInt), p(ParamLVarInt)}},
	{"IS_INT_LVAR_GREATER_OR_EQUAL_TO_INT_VAR", 0x002F, false, []Param{p(ParamLVarInt), p(ParamVarInt)}},
	{"IS_FLOAT_VAR_GREATER_OR_EQUAL_TO_NUMBER", 0x0030, false, []Param{p(ParamVarFloat), p(ParamFloat)}},
	{"IS_FLOAT_LVAR_GREATER_OR_EQUAL_TO_NUMBER", 0x0031, false, []Param{p(ParamLVarFloat), p(ParamFloat)}},

	{"IS_INT_VAR_EQUAL_TO_NUMBER", 0x0038, false, []Param{p(ParamVarInt), p(ParamInt)}},
	{"IS_INT_LVAR_EQUAL_TO_NUMBER", 0x0039, false, []Param{p(ParamLVarInt), p(ParamInt)}},
	{"IS_INT_VAR_EQUAL_TO_INT_VAR", 0x003A, false, []Param{p(ParamVarInt), p(ParamVarInt)}},
	{"IS_INT_LVAR_EQUAL_TO_INT_LVAR", 0x003B, false, []Param{p(ParamLVarInt), p(ParamLVarInt)}},
	{"IS_INT_VAR_EQUAL_TO_INT_LVAR", 0x003C, false, []Param{p(ParamVarInt), p(ParamLVarInt)}},
	{"IS_FLOAT_VAR_EQUAL_TO_NUMBER", 0x0042, false, []Param{p(ParamVarFloat), p(ParamFloat)}},
	{"IS_FLOAT_LVAR_EQUAL_TO_NUMBER", 0x0043, false, []Param{p(ParamLVarFloat), p(ParamFloat)}},
	{"IS_FLOAT_VAR_EQUAL_TO_FLOAT_VAR", 0x0044, false, []Param{p(ParamVarFloat), p(ParamVarFloat)}},
	{"IS_FLOAT_LVAR_EQUAL_TO_FLOAT_LVAR", 0x0045, false, []Param{p(ParamLVarFloat), p(ParamLVarFloat)}},

	{"GOTO_IF_TRUE", 0x004C, true, []Param{p(ParamLabel)}},
	{"GOTO_IF_FALSE", 0x004D, true, []Param{p(ParamLabel)}},
	{"TERMINATE_THIS_SCRIPT", 0x004E, true, nil},
	{"START_NEW_SCRIPT", 0x004F, false, []Param{p(ParamLabel)}},
	{"GOSUB", 0x0050, true, []Param{p(ParamLabel)}},
	{"RETURN", 0x0051, true, nil},

	{"ADD_INT_VAR_TO_INT_VAR", 0x0058, false, []Param{p(ParamVarInt), p(ParamVarInt)}},
	{"ADD_FLOAT_VAR_TO_FLOAT_VAR", 0x0059, false, []Param{p(ParamVarFloat), p(ParamVarFloat)}},
	{"ADD_INT_LVAR_TO_INT_LVAR", 0x005A, false, []Param{p(ParamLVarInt), p(ParamLVarInt)}},
	{"ADD_FLOAT_LVAR_TO_FLOAT_LVAR", 0x005B, false, []Param{p(ParamLVarFloat), p(ParamLVarFloat)}},
	{"ADD_INT_VAR_TO_INT_LVAR", 0x005C, false, []Param{p(ParamLVarInt), p(ParamVarInt)}},
	{"ADD_FLOAT_VAR_TO_FLOAT_LVAR", 0x005D, false, []Param{p(ParamLVarFloat), p(ParamVarFloat)}},
	{"ADD_INT_LVAR_TO_INT_VAR", 0x005E, false, []Param{p(ParamVarInt), p(ParamLVarInt)}},
	{"ADD_FLOAT_LVAR_TO_FLOAT_VAR", 0x005F, false, []Param{p(ParamVarFloat), p(ParamLVarFloat)}},

	{"SET_VAR_INT_TO_VAR_INT", 0x0084, false, []Param{p(ParamVarInt), p(ParamVarInt)}},
	{"SET_LVAR_INT_TO_LVAR_INT", 0x0085, false, []Param{p(ParamLVarInt), p(ParamLVarInt)}},
	{"SET_VAR_FLOAT_TO_VAR_FLOAT", 0x0086, false, []Param{p(ParamVarFloat), p(ParamVarFloat)}},
	{"SET_LVAR_FLOAT_TO_LVAR_FLOAT", 0x0087, false, []Param{p(ParamLVarFloat), p(ParamLVarFloat)}},
	{"SET_VAR_FLOAT_TO_LVAR_FLOAT", 0x0088, false, []Param{p(ParamVarFloat), p(ParamLVarFloat)}},
	{"SET_LVAR_FLOAT_TO_VAR_FLOAT", 0x0089, false, []Param{p(ParamLVarFloat), p(ParamVarFloat)}},
	{"SET_VAR_INT_TO_LVAR_INT", 0x008A, false, []Param{p(ParamVarInt), p(ParamLVarInt)}},
	{"SET_LVAR_INT_TO_VAR_INT", 0x008B, false, []Param{p(ParamLVarInt), p(ParamVarInt)}},

	{"CREATE_CHAR", 0x009A, false, []Param{
		pe(ParamConstant, "PEDTYPE"), pe(ParamConstant, "MODEL"),
		p(ParamFloat), p(ParamFloat), p(ParamFloat),
		pout(ParamIntVarAny, "CHAR"),
	}},
	{"DELETE_CHAR", 0x009B, false, []Param{pent(ParamIntVarAny, "CHAR")}},
	{"CREATE_CAR", 0x00A5, false, []Param{
		pe(ParamConstant, "MODEL"),
		p(ParamFloat), p(ParamFloat), p(ParamFloat),
		pout(ParamIntVarAny, "CAR"),
	}},
	{"DELETE_CAR", 0x00A6, false, []Param{pent(ParamIntVarAny, "CAR")}},
	{"CAR_GOTO_COORDINATES", 0x00A7, false, []Param{
		pent(ParamIntVarAny, "CAR"), p(ParamFloat), p(ParamFloat), p(ParamFloat),
	}},

	{"ANDOR", 0x00D6, true, []Param{p(ParamInt)}},
	{"PRINT_BIG", 0x00BB, false, []Param{p(ParamTextLabel), p(ParamInt), p(ParamInt)}},
	{"SCRIPT_NAME", 0x03A4, false, []Param{p(ParamTextLabel)}},
	{"PRINT_HELP", 0x03E5, false, []Param{p(ParamTextLabel)}},
	{"LOAD_AND_LAUNCH_MISSION_INTERNAL", 0x0417, false, []Param{p(ParamInt)}},

	{"SET_VAR_TEXT_LABEL", 0x06D1, false, []Param{p(ParamVarTextLabel), p(ParamTextLabel)}},
	{"SET_LVAR_TEXT_LABEL", 0x06D2, false, []Param{p(ParamLVarTextLabel), p(ParamTextLabel)}},
	{"SAVE_STRING_TO_DEBUG_FILE", 0x05B6, false, []Param{p(ParamString)}},
	{"REGISTER_STREAMED_SCRIPT", 0x0928, false, []Param{p(ParamTextLabel), p(ParamLabel)}},

	{"SWITCH_START", 0x0871, true, switchStartParams()},
	{"SWITCH_CONTINUED", 0x0872, true, switchContinuedParams()},
}

func switchStartParams() []Param {
	params := []Param{p(ParamIntVarAny), p(ParamInt), p(ParamLabel)}
	for i := 0; i < 7; i++ {
		params = append(params, p(ParamInt), p(ParamLabel))
	}
	return params
}

func switchContinuedParams() []Param {
	var params []Param
	for i := 0; i < 9; i++ {
		params = append(params, p(ParamInt), p(ParamLabel))
	}
	return params
}

// defaultAlternators groups commands under their script-level names.
var defaultAlternators = map[string][]string{
	"SET": {
		"SET_VAR_INT", "SET_VAR_FLOAT", "SET_LVAR_INT", "SET_LVAR_FLOAT",
		"SET_VAR_INT_TO_VAR_INT", "SET_LVAR_INT_TO_LVAR_INT",
		"SET_VAR_FLOAT_TO_VAR_FLOAT", "SET_LVAR_FLOAT_TO_LVAR_FLOAT",
		"SET_VAR_FLOAT_TO_LVAR_FLOAT", "SET_LVAR_FLOAT_TO_VAR_FLOAT",
		"SET_VAR_INT_TO_LVAR_INT", "SET_LVAR_INT_TO_VAR_INT",
		"SET_VAR_TEXT_LABEL", "SET_LVAR_TEXT_LABEL",
	},
	"ADD_THING_TO_THING": {
		"ADD_VAL_TO_INT_VAR", "ADD_VAL_TO_FLOAT_VAR",
		"ADD_VAL_TO_INT_LVAR", "ADD_VAL_TO_FLOAT_LVAR",
		"ADD_INT_VAR_TO_INT_VAR", "ADD_FLOAT_VAR_TO_FLOAT_VAR",
		"ADD_INT_LVAR_TO_INT_LVAR", "ADD_FLOAT_LVAR_TO_FLOAT_LVAR",
		"ADD_INT_VAR_TO_INT_LVAR", "ADD_FLOAT_VAR_TO_FLOAT_LVAR",
		"ADD_INT_LVAR_TO_INT_VAR", "ADD_FLOAT_LVAR_TO_FLOAT_VAR",
	},
	"SUB_THING_FROM_THING": {
		"SUB_VAL_FROM_INT_VAR", "SUB_VAL_FROM_FLOAT_VAR",
		"SUB_VAL_FROM_INT_LVAR", "SUB_VAL_FROM_FLOAT_LVAR",
	},
	"MULT_THING_BY_THING": {
		"MULT_INT_VAR_BY_VAL", "MULT_FLOAT_VAR_BY_VAL",
		"MULT_INT_LVAR_BY_VAL", "MULT_FLOAT_LVAR_BY_VAL",
	},
	"DIV_THING_BY_THING": {
		"DIV_INT_VAR_BY_VAL", "DIV_FLOAT_VAR_BY_VAL",
		"DIV_INT_LVAR_BY_VAL", "DIV_FLOAT_LVAR_BY_VAL",
	},
	"IS_THING_GREATER_THAN_THING": {
		"IS_INT_VAR_GREATER_THAN_NUMBER", "IS_INT_LVAR_GREATER_THAN_NUMBER",
		"IS_NUMBER_GREATER_THAN_INT_VAR", "IS_NUMBER_GREATER_THAN_INT_LVAR",
		"IS_INT_VAR_GREATER_THAN_INT_VAR", "IS_INT_LVAR_GREATER_THAN_INT_LVAR",
		"IS_INT_VAR_GREATER_THAN_INT_LVAR", "IS_INT_LVAR_GREATER_THAN_INT_VAR",
		"IS_FLOAT_VAR_GREATER_THAN_NUMBER", "IS_FLOAT_LVAR_GREATER_THAN_NUMBER",
		"IS_NUMBER_GREATER_THAN_FLOAT_VAR", "IS_NUMBER_GREATER_THAN_FLOAT_LVAR",
	},
	"IS_THING_GREATER_OR_EQUAL_TO_THING": {
		"IS_INT_VAR_GREATER_OR_EQUAL_TO_NUMBER", "IS_INT_LVAR_GREATER_OR_EQUAL_TO_NUMBER",
		"IS_NUMBER_GREATER_OR_EQUAL_TO_INT_VAR", "IS_NUMBER_GREATER_OR_EQUAL_TO_INT_LVAR",
		"IS_INT_VAR_GREATER_OR_EQUAL_TO_INT_VAR", "IS_INT_LVAR_GREATER_OR_EQUAL_TO_INT_LVAR",
		"IS_INT_VAR_GREATER_OR_EQUAL_TO_INT_LVAR", "IS_INT_LVAR_GREATER_OR_EQUAL_TO_INT_VAR",
		"IS_FLOAT_VAR_GREATER_OR_EQUAL_TO_NUMBER", "IS_FLOAT_LVAR_GREATER_OR_EQUAL_TO_NUMBER",
	},
	"IS_THING_EQUAL_TO_THING": {
		"IS_INT_VAR_EQUAL_TO_NUMBER", "IS_INT_LVAR_EQUAL_TO_NUMBER",
		"IS_INT_VAR_EQUAL_TO_INT_VAR", "IS_INT_LVAR_EQUAL_TO_INT_LVAR",
		"IS_INT_VAR_EQUAL_TO_INT_LVAR",
		"IS_FLOAT_VAR_EQUAL_TO_NUMBER", "IS_FLOAT_LVAR_EQUAL_TO_NUMBER",
		"IS_FLOAT_VAR_EQUAL_TO_FLOAT_VAR", "IS_FLOAT_LVAR_EQUAL_TO_FLOAT_LVAR",
	},
}

// defaultEnums is the built-in enum set.
var defaultEnums = []*Enum{
	{Name: "PEDTYPE", Constants: map[string]int32{
		"PEDTYPE_PLAYER1":  0,
		"PEDTYPE_CIVMALE":  4,
		"PEDTYPE_CIVFEMALE": 5,
		"PEDTYPE_COP":      6,
		"PEDTYPE_MEDIC":    16,
	}},
	{Name: "FADE", Constants: map[string]int32{
		"FADE_OUT": 0,
		"FADE_IN":  1,
	}},
	{Name: "BOOL", Constants: map[string]int32{
		"FALSE": 0,
		"TRUE":  1,
	}},
}

// DefaultTable builds the built-in command database for a target game.
// Commands outside the game's instruction set are present but marked
// unsupported, so references to them diagnose instead of resolving.
func DefaultTable(game Game) *Table {
	cmds := make([]*Command, 0, len(defaultCommands))
	byName := make(map[string]*Command, len(defaultCommands))
	for _, d := range defaultCommands {
		cmd := &Command{
			Name:      d.name,
			Opcode:    d.opcode,
			Supported: game == GameGTASA || !saOnly[d.name],
			Params:    d.params,
			IsKeyword: d.keyword,
		}
		cmds = append(cmds, cmd)
		byName[cmd.Name] = cmd
	}

	alts := make([]*Alternator, 0, len(defaultAlternators))
	for name, refs := range defaultAlternators {
		alt := &Alternator{Name: name}
		for _, ref := range refs {
			alt.Commands = append(alt.Commands, byName[ref])
		}
		alts = append(alts, alt)
	}

	return NewTable(cmds, alts, defaultEnums)
}
