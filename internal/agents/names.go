package agents

import "hash/fnv"

// displayNames is the pool of navigator-inspired display names. The
// list is fixed so a given seed always maps to the same name, keeping
// log lines for one agent correlated across an execution.
var displayNames = []string{
	"Magellan", "Elcano", "Gama", "Dias", "Cabral",
	"Columbus", "Vespucci", "Balboa", "Orellana", "Cabot",
	"Cartier", "Champlain", "Hudson", "Baffin", "Frobisher",
	"Drake", "Raleigh", "Cook", "Vancouver", "Flinders",
	"Tasman", "Barents", "Bering", "Laperouse", "Bougainville",
	"Pytheas", "Eriksson", "Polo", "Battuta", "Zheng",
	"Nansen", "Amundsen", "Shackleton", "Ross", "Weddell",
	"Livingstone", "Stanley", "Burton", "Speke", "Park",
	"Humboldt", "Darwin", "Wallace", "Kingsley", "Bell",
	"Earhart", "Markham", "Tabei", "Hillary", "Norgay",
}

// DisplayName returns a deterministic display name for a seed and
// index: the same inputs always produce the same name.
func DisplayName(seed string, index int) string {
	if len(displayNames) == 0 {
		return ""
	}
	hash := fnv32a(seed)
	return displayNames[(int(hash)+index)%len(displayNames)]
}

func fnv32a(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
