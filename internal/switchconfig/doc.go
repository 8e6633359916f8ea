// Package switchconfig owns the mapping from relay topics to pulse
// definitions (on command, off command, pulse length).
//
// A Store combines up to four sources:
//   - built-in defaults from the application config
//   - the SQLite snapshot of the last applied mapping
//   - an optional local JSON/YAML file, watched with fsnotify
//   - remote updates published to <base>/config
//
// Every update replaces the whole mapping. A document that cannot be decoded
// is rejected and the previous mapping stays in force. Entries are checked
// one at a time: an entry with a missing or invalid field is kept, logged and
// left out of the snapshot, and only pulses for that topic fail. Applied
// mappings are written to the snapshot and pushed to every handler
// registered with SubscribeToConfigChange.
//
// Wire format of a mapping:
//
//	{
//	  "shellies/house/garage/door/relay/0/command": {
//	    "on": "on",
//	    "off": "off",
//	    "switchTimeMs": 1000
//	  }
//	}
package switchconfig
