package dialogue

import (
	"fmt"
	"strings"
)

// catalog holds every correspondent-facing text for one language.
type catalog struct {
	morning, afternoon, evening string

	greeting      string // greeting, assistant name
	mainMenu      string
	helpMenu      string
	langSwitched  string
	askName       string
	nameEmpty     string
	askRegID      string // first name
	badRegID      string
	regNotFound   string
	regUnavail    string
	optionMenu    string // name
	invalidOption string
	infoList      string // numbered keys
	infoEmpty     string
	infoValue     string // key, value
	moreInfo      string
	benefitMenu   string
	benefitChosen string // benefit
	askFeedback   string
	askCancelWhy  string
	askDetails    string
	emptyDetails  string
	ratingPrompt  string
	ratingCancel  string
	ratingYesNo   string
	askRating     string
	ratingRange   string
	summary       string // name, id, option, details, rating, code
	thanksRated   string
	thanksPlain   string
	cancelledDone string
	askProtocol   string
	protocolFound string // code, status, date, option
	protocolMiss  string
	protocolBack  string
	cancelAsk     string
	cancelNothing string
	cancelKept    string
	handoffAsk    string
	handoffOffer  string
	handoffAck    string
	handoffReask  string
	handoffDecl   string
	nudge         string
	groupNotice   string
	apology       string
	notAvailable  string
	statusDone    string
	statusCancel  string

	optConsult, optBenefits, optFeedback, optCancel string
	consultPrefix                                   string
	benefits                                        []string
}

var catalogs = map[string]*catalog{
	"pt": {
		morning:   "Bom dia",
		afternoon: "Boa tarde",
		evening:   "Boa noite",

		greeting: "%s! Sou a %s 🤖, sua assistente virtual do Departamento Pessoal. Como posso ajudar você hoje?",
		mainMenu: "1️⃣ - Iniciar atendimento\n2️⃣ - Verificar status de protocolo\n3️⃣ - Cancelar atendimento\n" +
			"4️⃣ - Falar com um atendente humano\nDigite \"ajuda\" para ver todas as opções disponíveis.",
		helpMenu: "📋 Menu de ajuda:\n1️⃣ - Iniciar atendimento\n2️⃣ - Verificar status de protocolo\n3️⃣ - Cancelar atendimento\n" +
			"4️⃣ - Falar com um atendente humano\n5️⃣ - Ver opções disponíveis\n🌐 Digite \"en\" for English.",
		langSwitched:  "🌐 Idioma alterado para português.",
		askName:       "📝 Ótimo! Informe seu nome completo:",
		nameEmpty:     "⚠ Por favor, informe seu nome completo.",
		askRegID:      "📝 Perfeito, %s! Agora, informe sua matrícula (6 dígitos e começando com 0):",
		badRegID:      "⚠ Matrícula inválida. A matrícula deve ter 6 dígitos e começar com 0. Tente novamente.",
		regNotFound:   "⚠ Colaborador não encontrado. Verifique a matrícula e tente novamente.",
		regUnavail:    "⚠ Não foi possível consultar o cadastro agora. Tente novamente em instantes.",
		optionMenu:    "📄 Olá %s, como posso ajudá-lo?\n1️⃣ - Consultar informações\n2️⃣ - Dúvidas sobre benefícios\n3️⃣ - Fazer uma sugestão ou elogio\n4️⃣ - Cancelar atendimento\nDigite o número da opção que você deseja consultar.",
		invalidOption: "⚠ Opção inválida. Escolha um número válido.",
		infoList:      "📄 Aqui estão as informações disponíveis:\n%s\nEscolha um número para consultar.",
		infoEmpty:     "⚠ Não há informações disponíveis para a sua matrícula.",
		infoValue:     "📄 %s: %s",
		moreInfo:      "📋 Deseja consultar mais informações ou finalizar o atendimento?\n1️⃣ - Consultar mais informações\n2️⃣ - Finalizar atendimento",
		benefitMenu:   "💼 Selecione a dúvida sobre benefícios:\n1️⃣ - Plano de saúde\n2️⃣ - Ticket restaurante\n3️⃣ - Ticket refeição\n4️⃣ - Férias",
		benefitChosen: "💼 Você selecionou: %s. Por favor, detalhe sua dúvida ou problema.",
		askFeedback:   "😊 Agradecemos seu feedback! Por favor, escreva sua sugestão ou elogio.",
		askCancelWhy:  "🛑 Lamentamos que você queira cancelar. Estamos sempre buscando melhorar! Por favor, nos diga o motivo do cancelamento.",
		askDetails:    "📝 Por favor, descreva sua dúvida ou solicitação.",
		emptyDetails:  "⚠ Detalhes inválidos. Por favor, forneça mais informações.",
		ratingPrompt:  "🔄 Estamos trabalhando para resolver seu problema. Seu código de atendimento é %s. Você gostaria de avaliar nosso atendimento? (1 - Sim, 2 - Não)",
		ratingCancel:  "🛑 Cancelamento registrado com o código %s. Você gostaria de avaliar nosso atendimento? (1 - Sim, 2 - Não)",
		ratingYesNo:   "⚠ Responda 1 para avaliar ou 2 para finalizar.",
		askRating:     "💬 Como você avaliaria nosso atendimento? (1 a 5)",
		ratingRange:   "⚠ Avaliação inválida. Por favor, forneça um valor entre 1 e 5.",
		summary:       "📋 Resumo do Atendimento:\nNome: %s\nMatrícula: %s\nOpção escolhida: %s\nDetalhes: %s\nAvaliação: %s\nCódigo de atendimento: %s",
		thanksRated:   "👍 Agradecemos pela sua avaliação! Se precisar, é só chamar!",
		thanksPlain:   "👍 Agradecemos pelo feedback e pelo seu tempo! Se precisar, é só chamar!",
		cancelledDone: "🛑 Atendimento cancelado. Se precisar, é só chamar!",
		askProtocol:   "📄 Por favor, informe o número do seu protocolo (ou 0 para voltar):",
		protocolFound: "📄 Protocolo %s: %s em %s (%s).",
		protocolMiss:  "⚠ Protocolo não encontrado. Verifique o código e tente novamente, ou digite 0 para voltar.",
		protocolBack:  "↩ Voltando ao menu inicial.",
		cancelAsk:     "❓ Deseja realmente cancelar o atendimento? Responda \"sim\" ou \"não\".",
		cancelNothing: "✅ Tudo certo, nenhum atendimento em andamento. Se precisar, é só chamar!",
		cancelKept:    "👍 Ok, vamos continuar de onde paramos.",
		handoffAsk:    "⚠ Não consegui entender suas mensagens. Você gostaria de falar com um humano? Responda \"sim\" ou \"não\".",
		handoffOffer:  "👤 Você gostaria de falar com um atendente humano? Responda \"sim\" ou \"não\".",
		handoffAck:    "👤 Certo! Um atendente humano vai continuar seu atendimento em breve.",
		handoffReask:  "❓ Responda \"sim\" para falar com um atendente ou \"não\" para continuar.",
		handoffDecl:   "👍 Ok, vamos continuar por aqui.",
		nudge:         "⏳ Olá! Estou aqui se precisar de algo. 😉",
		groupNotice:   "🔒 Não posso responder em grupos. Por favor, envie uma mensagem privada.",
		apology:       "⚠ Ocorreu um erro ao processar sua solicitação. Por favor, tente novamente mais tarde.",
		notAvailable:  "N/A",
		statusDone:    "Concluído",
		statusCancel:  "Cancelado",

		optConsult:    "Consultar informações",
		optBenefits:   "Benefícios",
		optFeedback:   "Sugestão ou elogio",
		optCancel:     "Cancelamento",
		consultPrefix: "Consulta",
		benefits:      []string{"Plano de saúde", "Ticket restaurante", "Ticket refeição", "Férias"},
	},
	"en": {
		morning:   "Good morning",
		afternoon: "Good afternoon",
		evening:   "Good evening",

		greeting: "%s! I'm %s 🤖, your HR virtual assistant. How can I help you today?",
		mainMenu: "1️⃣ - Start service\n2️⃣ - Check protocol status\n3️⃣ - Cancel service\n" +
			"4️⃣ - Talk to a human agent\nType \"help\" to see every available option.",
		helpMenu: "📋 Help Menu:\n1️⃣ - Start service\n2️⃣ - Check protocol status\n3️⃣ - Cancel service\n" +
			"4️⃣ - Talk to a human agent\n5️⃣ - See available options\n🌐 Digite \"pt\" para português.",
		langSwitched:  "🌐 Language switched to English.",
		askName:       "📝 Great! Please enter your full name:",
		nameEmpty:     "⚠ Please enter your full name.",
		askRegID:      "📝 Perfect, %s! Now enter your registration number (6 digits starting with 0):",
		badRegID:      "⚠ Invalid registration number. It must have 6 digits and start with 0. Please try again.",
		regNotFound:   "⚠ Employee not found. Check the registration number and try again.",
		regUnavail:    "⚠ The employee registry is unavailable right now. Please try again shortly.",
		optionMenu:    "📄 Hello %s, how can I help you?\n1️⃣ - Look up information\n2️⃣ - Benefits questions\n3️⃣ - Send a suggestion or compliment\n4️⃣ - Cancel service\nType the number of the option you want.",
		invalidOption: "⚠ Invalid option. Please choose a valid number.",
		infoList:      "📄 Here is the available information:\n%s\nChoose a number to look up.",
		infoEmpty:     "⚠ There is no information available for your registration number.",
		infoValue:     "📄 %s: %s",
		moreInfo:      "📋 Would you like to look up more information or finish?\n1️⃣ - Look up more information\n2️⃣ - Finish",
		benefitMenu:   "💼 Choose your benefits question:\n1️⃣ - Health plan\n2️⃣ - Restaurant voucher\n3️⃣ - Meal voucher\n4️⃣ - Vacation",
		benefitChosen: "💼 You selected: %s. Please describe your question or problem.",
		askFeedback:   "😊 Thanks for your feedback! Please write your suggestion or compliment.",
		askCancelWhy:  "🛑 We're sorry you want to cancel. We are always trying to improve! Please tell us why.",
		askDetails:    "📝 Please describe your question or request.",
		emptyDetails:  "⚠ Invalid details. Please provide more information.",
		ratingPrompt:  "🔄 We're working on your request. Your ticket code is %s. Would you like to rate our service? (1 - Yes, 2 - No)",
		ratingCancel:  "🛑 Cancellation recorded with code %s. Would you like to rate our service? (1 - Yes, 2 - No)",
		ratingYesNo:   "⚠ Reply 1 to rate or 2 to finish.",
		askRating:     "💬 How would you rate our service? (1 to 5)",
		ratingRange:   "⚠ Invalid rating. Please give a value between 1 and 5.",
		summary:       "📋 Service summary:\nName: %s\nRegistration: %s\nSelected option: %s\nDetails: %s\nRating: %s\nTicket code: %s",
		thanksRated:   "👍 Thanks for your rating! Reach out any time!",
		thanksPlain:   "👍 Thanks for your feedback and your time! Reach out any time!",
		cancelledDone: "🛑 Service cancelled. Reach out any time!",
		askProtocol:   "📄 Please enter your protocol number (or 0 to go back):",
		protocolFound: "📄 Protocol %s: %s on %s (%s).",
		protocolMiss:  "⚠ Protocol not found. Check the code and try again, or type 0 to go back.",
		protocolBack:  "↩ Back to the main menu.",
		cancelAsk:     "❓ Do you really want to cancel? Reply \"yes\" or \"no\".",
		cancelNothing: "✅ All good, there is no service in progress. Reach out any time!",
		cancelKept:    "👍 Ok, let's continue where we left off.",
		handoffAsk:    "⚠ I couldn't understand your messages. Would you like to talk to a human? Reply \"yes\" or \"no\".",
		handoffOffer:  "👤 Would you like to talk to a human agent? Reply \"yes\" or \"no\".",
		handoffAck:    "👤 Sure! A human agent will pick up your request shortly.",
		handoffReask:  "❓ Reply \"yes\" to talk to an agent or \"no\" to continue.",
		handoffDecl:   "👍 Ok, let's continue here.",
		nudge:         "⏳ Hi! I'm here if you need anything. 😉",
		groupNotice:   "🔒 I can't reply in groups. Please send me a private message.",
		apology:       "⚠ Something went wrong while processing your request. Please try again later.",
		notAvailable:  "N/A",
		statusDone:    "Completed",
		statusCancel:  "Cancelled",

		optConsult:    "Information lookup",
		optBenefits:   "Benefits",
		optFeedback:   "Suggestion or compliment",
		optCancel:     "Cancellation",
		consultPrefix: "Lookup",
		benefits:      []string{"Health plan", "Restaurant voucher", "Meal voucher", "Vacation"},
	},
}

// Languages lists the supported catalog keys.
func Languages() []string { return []string{"pt", "en"} }

func lookupCatalog(lang string) *catalog {
	if c, ok := catalogs[lang]; ok {
		return c
	}
	return catalogs["pt"]
}

func (c *catalog) greetingFor(hour int, assistant string) string {
	part := c.evening
	switch {
	case hour < 12:
		part = c.morning
	case hour < 18:
		part = c.afternoon
	}
	return fmt.Sprintf(c.greeting, part, assistant)
}

func (c *catalog) orNA(s string) string {
	if s == "" {
		return c.notAvailable
	}
	return s
}

func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return name
}
