package roster

// MeleeAliasGroup links Zelda and Sheik, who share a character slot.
const MeleeAliasGroup = "zelda-sheik"

// Names double as badge (custom emoji) names, so they stay alphanumeric.
var meleeEntries = []Entry{
	{Name: "Bowser", Color: 0x5B8C3A},
	{Name: "CaptainFalcon", Color: 0x3B4CA8},
	{Name: "DonkeyKong", Color: 0x8B4513},
	{Name: "DrMario", Color: 0xF2F2F2},
	{Name: "Falco", Color: 0x3A6EC9},
	{Name: "Fox", Color: 0xD9822B},
	{Name: "Ganondorf", Color: 0x4B2A5E},
	{Name: "IceClimbers", Color: 0x7EC8E3},
	{Name: "Jigglypuff", Color: 0xF7A1C4},
	{Name: "Kirby", Color: 0xFFB6C1},
	{Name: "Link", Color: 0x2E8B57},
	{Name: "Luigi", Color: 0x2FA84F},
	{Name: "Mario", Color: 0xE52521},
	{Name: "Marth", Color: 0x1F3C88},
	{Name: "Mewtwo", Color: 0xA58BC9},
	{Name: "MrGameAndWatch", Color: 0x1A1A1A},
	{Name: "Ness", Color: 0xD7263D},
	{Name: "Peach", Color: 0xF4A7C0},
	{Name: "Pichu", Color: 0xFFE873},
	{Name: "Pikachu", Color: 0xF6D02F},
	{Name: "Roy", Color: 0xB22222},
	{Name: "Samus", Color: 0xF08C00},
	{Name: "Sheik", Color: 0x4169E1, AliasGroup: MeleeAliasGroup},
	{Name: "Yoshi", Color: 0x6ABE30},
	{Name: "YoungLink", Color: 0x7CB342},
	{Name: "Zelda", Color: 0xE6A8D7, AliasGroup: MeleeAliasGroup, AliasLead: true},
}

// Default returns the Super Smash Bros. Melee roster.
func Default() *Catalog {
	return MustNew(meleeEntries)
}
