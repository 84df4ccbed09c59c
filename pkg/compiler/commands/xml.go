package commands

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// The on-disk command database is XML. Layout:
//
//	<GTA3Script>
//	  <Commands>
//	    <Command Name="WAIT" ID="0x0001" Supported="true">
//	      <Args><Arg Type="INT"/></Args>
//	    </Command>
//	  </Commands>
//	  <Alternators>
//	    <Alternator Name="SET"><Command Name="SET_VAR_INT"/></Alternator>
//	  </Alternators>
//	  <Enums>
//	    <Enum Name="PEDTYPE"><Constant Name="CIVMALE" Value="4"/></Enum>
//	  </Enums>
//	</GTA3Script>

type xmlRoot struct {
	XMLName     xml.Name        `xml:"GTA3Script"`
	Commands    []xmlCommand    `xml:"Commands>Command"`
	Alternators []xmlAlternator `xml:"Alternators>Alternator"`
	Enums       []xmlEnum       `xml:"Enums>Enum"`
}

type xmlCommand struct {
	Name      string   `xml:"Name,attr"`
	ID        string   `xml:"ID,attr"`
	Supported *bool    `xml:"Supported,attr"`
	Keyword   bool     `xml:"Keyword,attr"`
	Args      []xmlArg `xml:"Args>Arg"`
}

type xmlArg struct {
	Type     string `xml:"Type,attr"`
	Enum     string `xml:"Enum,attr"`
	Entity   string `xml:"Entity,attr"`
	Out      bool   `xml:"Out,attr"`
	Optional bool   `xml:"Optional,attr"`
}

type xmlAlternator struct {
	Name     string `xml:"Name,attr"`
	Commands []struct {
		Name string `xml:"Name,attr"`
	} `xml:"Command"`
}

type xmlEnum struct {
	Name      string `xml:"Name,attr"`
	Constants []struct {
		Name  string `xml:"Name,attr"`
		Value int32  `xml:"Value,attr"`
	} `xml:"Constant"`
}

// LoadXML reads a command database from an XML config file.
func LoadXML(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read command database %s: %w", path, err)
	}
	return ParseXML(data)
}

// ParseXML builds a Table from XML config bytes.
func ParseXML(data []byte) (*Table, error) {
	var root xmlRoot
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("malformed command database: %w", err)
	}

	cmds := make([]*Command, 0, len(root.Commands))
	byName := make(map[string]*Command, len(root.Commands))
	for _, xc := range root.Commands {
		opcode, err := parseOpcode(xc.ID)
		if err != nil {
			return nil, fmt.Errorf("command %s: %w", xc.Name, err)
		}
		cmd := &Command{
			Name:      strings.ToUpper(xc.Name),
			Opcode:    opcode,
			Supported: xc.Supported == nil || *xc.Supported,
			IsKeyword: xc.Keyword,
		}
		for _, xa := range xc.Args {
			kind, ok := paramKindNames[strings.ToUpper(xa.Type)]
			if !ok {
				return nil, fmt.Errorf("command %s: unknown arg type %q", xc.Name, xa.Type)
			}
			cmd.Params = append(cmd.Params, Param{
				Kind:     kind,
				Enum:     strings.ToUpper(xa.Enum),
				Entity:   strings.ToUpper(xa.Entity),
				Out:      xa.Out,
				Optional: xa.Optional,
			})
		}
		cmds = append(cmds, cmd)
		byName[cmd.Name] = cmd
	}

	alts := make([]*Alternator, 0, len(root.Alternators))
	for _, xa := range root.Alternators {
		alt := &Alternator{Name: strings.ToUpper(xa.Name)}
		for _, ref := range xa.Commands {
			cmd, ok := byName[strings.ToUpper(ref.Name)]
			if !ok {
				return nil, fmt.Errorf("alternator %s references unknown command %s", xa.Name, ref.Name)
			}
			alt.Commands = append(alt.Commands, cmd)
		}
		alts = append(alts, alt)
	}

	enums := make([]*Enum, 0, len(root.Enums))
	for _, xe := range root.Enums {
		e := &Enum{Name: strings.ToUpper(xe.Name), Constants: make(map[string]int32)}
		for _, c := range xe.Constants {
			e.Constants[strings.ToUpper(c.Name)] = c.Value
		}
		enums = append(enums, e)
	}

	return NewTable(cmds, alts, enums), nil
}

func parseOpcode(id string) (uint16, error) {
	id = strings.TrimSpace(id)
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(id), "0x"), 16, 16)
	if err != nil {
		return 0, fmt.Errorf("bad opcode %q", id)
	}
	return uint16(v), nil
}
