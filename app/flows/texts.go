package flows

// User-facing copy. The service speaks French.
const (
	msgWelcome       = "Bienvenue ! Que souhaitez-vous faire ?"
	msgUnknownOption = "Option inconnue. Envoyez /start pour recommencer."
	msgPickMethod    = "Choisissez le mode de paiement :"
	msgAskNumber     = "Entrez le numéro de transfert :"
	msgAskReference  = "Entrez la référence de transfert (votre ID choisi) :"
	msgAskName       = "Entrez votre nom :"
	msgAskSurname    = "Entrez votre prénom :"
	msgAskPhone      = "Entrez votre numéro de téléphone :"
	msgAskMemberID   = "Choisissez votre identifiant unique (ID) :"
	msgInternalError = "Une erreur est survenue. Réessayez plus tard ou tapez /start."

	msgPaymentReceived = "Merci !\n" +
		"Votre paiement est en attente de validation par un administrateur.\n" +
		"Vous recevrez votre code d'abonnement une fois le paiement confirmé.\n" +
		"Pour revenir au menu, tapez /start."

	msgHelp = "Aide :\n" +
		"- Inscription : renseignez vos infos pour créer un compte.\n" +
		"- Paiement : payez 5000 Ar via Mvola ou Airtel Money, puis fournissez les infos demandées pour obtenir votre code d'accès.\n" +
		"- Statut abonnement : consultez la validité de votre code.\n" +
		"Utilisez /start pour revenir au menu à tout moment."

	msgNoAccount      = "Aucun compte trouvé. Utilisez Inscription pour créer un compte."
	msgNoSubscription = "Aucun abonnement actif. Utilisez Paiement pour en obtenir un."
	msgPendingReview  = "Votre paiement est en attente de validation par un administrateur."

	labelPay    = "Paiement"
	labelSignup = "Inscription"
	labelHelp   = "Aide"
	labelStatus = "Statut abonnement"
	labelMvola  = "Via Mvola"
	labelAirtel = "Via Airtel Money"
	labelBack   = "Retour"
)
