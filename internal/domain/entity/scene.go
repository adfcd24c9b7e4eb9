package entity

// Dialogue 台词
type Dialogue struct {
	Character string `json:"character"`
	Line      string `json:"line"`
}

// Scene 剧本场次
type Scene struct {
	SceneNumber int        `json:"sceneNumber"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Dialogue    []Dialogue `json:"dialogue"`
	Prompt      string     `json:"prompt,omitempty"`
}

// Clone 深拷贝场次
func (s Scene) Clone() Scene {
	s.Dialogue = cloneDialogue(s.Dialogue)
	return s
}

func cloneDialogue(in []Dialogue) []Dialogue {
	if in == nil {
		return []Dialogue{}
	}
	return append([]Dialogue(nil), in...)
}
