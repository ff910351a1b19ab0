package ai

import "strings"

// PlaceholderSummary is shown on the post-call view when no transcript was
// captured for the session.
const PlaceholderSummary = "Resumo disponível após o encerramento da sessão. Reflita sobre os principais temas discutidos e próximos passos."

// LocalReflections is the offline counterpart of
// GeneratePostCallReflections: three fixed journal prompts derived from the
// summary text without calling the model. The two implementations are
// intentionally parallel and do not feed each other.
func LocalReflections(summary string) []string {
	condensed := truncateRunes(strings.TrimSpace(summary), 140)

	third := "Que padrão emocional você percebeu durante a conversa e como pode cuidar disso com mais intenção?"
	if condensed != "" {
		third = `Como o tema "` + condensed + `" se conecta com seus objetivos para este mês?`
	}

	return []string{
		"Qual foi o insight mais importante desta sessão para o seu momento atual?",
		"Que ação prática você pode tomar nas próximas 24 horas com base na orientação recebida?",
		third,
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
