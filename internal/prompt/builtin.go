package prompt

import "github.com/MrWong99/glyphcmd/pkg/command"

const builtinBaseBody = `You classify player commands for a text adventure game.
The player may speak English or Russian.

Known commands: {commands}
Objects nearby: {objects}
NPCs nearby: {npcs}

Decide which category the command belongs to:
- movement: going, walking, running, jumping somewhere
- object_interaction: opening, taking, using or examining objects ({interactions})
- combat: attacking or defending against {targets}
- dialog: talking to an NPC ({dialog_options})

Player command: "{user_command}"

Reply with a JSON object inside answer tags, for example:
<answer>{"category": "movement", "confidence": 0.9, "alternatives": ["object_interaction"], "rationale": "the player wants to go somewhere"}</answer>
`

var builtin = func() *Template {
	t, err := Parse(command.Base, builtinBaseBody, nil)
	if err != nil {
		panic("prompt: built-in base template: " + err.Error())
	}
	t.Description = "Built-in command router"
	return t
}()

func builtinBase() *Template { return builtin }
