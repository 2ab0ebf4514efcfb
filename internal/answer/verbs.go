package answer

import "github.com/MrWong99/glyphcmd/pkg/command"

// verbs maps raw command verbs, English and Russian, to categories.
var verbs = map[string]command.Category{
	// movement
	"move": command.Movement, "go": command.Movement, "walk": command.Movement,
	"run": command.Movement, "jump": command.Movement, "climb": command.Movement,
	"enter": command.Movement, "exit": command.Movement, "leave": command.Movement,
	"head": command.Movement, "travel": command.Movement, "swim": command.Movement,
	"crawl": command.Movement, "sneak": command.Movement, "follow": command.Movement,
	"иди": command.Movement, "идти": command.Movement, "пойди": command.Movement,
	"двигайся": command.Movement, "беги": command.Movement, "прыгай": command.Movement,
	"прыгни": command.Movement, "войди": command.Movement, "выйди": command.Movement,
	"поднимись": command.Movement, "спустись": command.Movement,

	// combat
	"attack": command.Combat, "fight": command.Combat, "hit": command.Combat,
	"strike": command.Combat, "kill": command.Combat, "shoot": command.Combat,
	"slash": command.Combat, "stab": command.Combat, "defend": command.Combat,
	"block": command.Combat, "parry": command.Combat, "cast": command.Combat,
	"атакуй": command.Combat, "атаковать": command.Combat, "атакуйте": command.Combat,
	"ударь": command.Combat, "бей": command.Combat, "сражайся": command.Combat,
	"убей": command.Combat, "стреляй": command.Combat, "защищайся": command.Combat,

	// dialog
	"talk": command.Dialog, "speak": command.Dialog, "say": command.Dialog,
	"ask": command.Dialog, "greet": command.Dialog, "chat": command.Dialog,
	"tell": command.Dialog, "trade": command.Dialog, "buy": command.Dialog,
	"sell": command.Dialog,
	"поговори": command.Dialog, "говори": command.Dialog, "скажи": command.Dialog,
	"спроси": command.Dialog, "поприветствуй": command.Dialog, "поздоровайся": command.Dialog,

	// object interaction
	"use": command.ObjectInteraction, "take": command.ObjectInteraction,
	"open": command.ObjectInteraction, "close": command.ObjectInteraction,
	"pick": command.ObjectInteraction, "grab": command.ObjectInteraction,
	"examine": command.ObjectInteraction, "inspect": command.ObjectInteraction,
	"look": command.ObjectInteraction, "push": command.ObjectInteraction,
	"pull": command.ObjectInteraction, "activate": command.ObjectInteraction,
	"drop": command.ObjectInteraction, "read": command.ObjectInteraction,
	"interact": command.ObjectInteraction, "equip": command.ObjectInteraction,
	"открой": command.ObjectInteraction, "закрой": command.ObjectInteraction,
	"возьми": command.ObjectInteraction, "подними": command.ObjectInteraction,
	"используй": command.ObjectInteraction, "осмотри": command.ObjectInteraction,
	"нажми": command.ObjectInteraction, "потяни": command.ObjectInteraction,
	"толкни": command.ObjectInteraction, "прочитай": command.ObjectInteraction,
	"брось": command.ObjectInteraction,
}
