package bot

import (
	_ "embed"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"gopkg.in/yaml.v3"
)

//go:embed commands.yaml
var commandsYAML []byte

type catalogFile struct {
	Commands []commandDef `yaml:"commands"`
}

type commandDef struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Admin       bool        `yaml:"admin"`
	GuildOnly   bool        `yaml:"guild_only"`
	Options     []optionDef `yaml:"options"`
}

type optionDef struct {
	Name        string      `yaml:"name"`
	Type        string      `yaml:"type"`
	Description string      `yaml:"description"`
	Required    bool        `yaml:"required"`
	Min         *float64    `yaml:"min"`
	Max         *float64    `yaml:"max"`
	Choices     []choiceDef `yaml:"choices"`
}

type choiceDef struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

var optionTypes = map[string]discordgo.ApplicationCommandOptionType{
	"string":  discordgo.ApplicationCommandOptionString,
	"integer": discordgo.ApplicationCommandOptionInteger,
	"boolean": discordgo.ApplicationCommandOptionBoolean,
	"user":    discordgo.ApplicationCommandOptionUser,
}

// Commands returns the slash command catalog embedded in the binary.
//
// Postcondition: Returns a fresh slice on every call; callers may mutate it.
func Commands() ([]*discordgo.ApplicationCommand, error) {
	return ParseCatalog(commandsYAML)
}

// ParseCatalog decodes a YAML command catalog into Discord application commands.
//
// Postcondition: Returns at least one command, or a non-nil error naming the
// offending command or option.
func ParseCatalog(data []byte) ([]*discordgo.ApplicationCommand, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding command catalog: %w", err)
	}
	if len(f.Commands) == 0 {
		return nil, fmt.Errorf("command catalog is empty")
	}

	seen := make(map[string]bool, len(f.Commands))
	out := make([]*discordgo.ApplicationCommand, 0, len(f.Commands))
	for _, c := range f.Commands {
		if c.Name == "" || c.Description == "" {
			return nil, fmt.Errorf("command %q: name and description are required", c.Name)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("command %q: defined more than once", c.Name)
		}
		seen[c.Name] = true

		cmd := &discordgo.ApplicationCommand{
			Type:        discordgo.ChatApplicationCommand,
			Name:        c.Name,
			Description: c.Description,
		}
		if c.Admin {
			perms := int64(discordgo.PermissionAdministrator)
			cmd.DefaultMemberPermissions = &perms
		}
		if c.GuildOnly {
			dm := false
			cmd.DMPermission = &dm
		}
		for _, o := range c.Options {
			opt, err := buildOption(o)
			if err != nil {
				return nil, fmt.Errorf("command %q: %w", c.Name, err)
			}
			cmd.Options = append(cmd.Options, opt)
		}
		out = append(out, cmd)
	}
	return out, nil
}

func buildOption(o optionDef) (*discordgo.ApplicationCommandOption, error) {
	typ, ok := optionTypes[o.Type]
	if !ok {
		return nil, fmt.Errorf("option %q: unknown type %q", o.Name, o.Type)
	}
	if o.Name == "" || o.Description == "" {
		return nil, fmt.Errorf("option %q: name and description are required", o.Name)
	}
	opt := &discordgo.ApplicationCommandOption{
		Type:        typ,
		Name:        o.Name,
		Description: o.Description,
		Required:    o.Required,
	}
	if o.Min != nil || o.Max != nil {
		if typ != discordgo.ApplicationCommandOptionInteger {
			return nil, fmt.Errorf("option %q: min/max only apply to integer options", o.Name)
		}
		opt.MinValue = o.Min
		if o.Max != nil {
			opt.MaxValue = *o.Max
		}
	}
	for _, ch := range o.Choices {
		opt.Choices = append(opt.Choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  ch.Name,
			Value: ch.Value,
		})
	}
	return opt, nil
}
