package accounts

import "github.com/cleared-dev/piecebook/internal/model"

// DefaultChart returns a subset of the SCF chart of accounts. Supplier and
// customer accounts require an auxiliary.
func DefaultChart() []model.Account {
	return []model.Account{
		{Code: "101000", Label: "Capital social", Class: 1, Type: model.AccountTypeEquity},
		{Code: "106100", Label: "Réserve légale", Class: 1, Type: model.AccountTypeEquity},
		{Code: "120000", Label: "Résultat de l'exercice (bénéfice)", Class: 1, Type: model.AccountTypeEquity},
		{Code: "164000", Label: "Emprunts bancaires", Class: 1, Type: model.AccountTypeLiability},

		{Code: "213000", Label: "Constructions", Class: 2, Type: model.AccountTypeAsset},
		{Code: "215000", Label: "Installations techniques", Class: 2, Type: model.AccountTypeAsset},
		{Code: "218000", Label: "Autres immobilisations corporelles", Class: 2, Type: model.AccountTypeAsset},
		{Code: "281000", Label: "Amortissements des immob. corporelles", Class: 2, Type: model.AccountTypeAsset},

		{Code: "300000", Label: "Stocks de marchandises", Class: 3, Type: model.AccountTypeAsset},
		{Code: "380000", Label: "Achats marchandises stockées", Class: 3, Type: model.AccountTypeAsset},

		{Code: "401000", Label: "Fournisseurs", Class: 4, Type: model.AccountTypeLiability, IsAuxiliaryRequired: true},
		{Code: "411000", Label: "Clients", Class: 4, Type: model.AccountTypeAsset, IsAuxiliaryRequired: true},
		{Code: "431000", Label: "CNAS", Class: 4, Type: model.AccountTypeLiability},
		{Code: "445660", Label: "TVA déductible", Class: 4, Type: model.AccountTypeAsset},
		{Code: "445710", Label: "TVA collectée", Class: 4, Type: model.AccountTypeLiability},
		{Code: "447000", Label: "Autres impôts (TAP)", Class: 4, Type: model.AccountTypeLiability},

		{Code: "512000", Label: "Banques (Comptes courants)", Class: 5, Type: model.AccountTypeAsset},
		{Code: "531000", Label: "Caisse", Class: 5, Type: model.AccountTypeAsset},
		{Code: "581000", Label: "Virements de fonds", Class: 5, Type: model.AccountTypeAsset},

		{Code: "600000", Label: "Achats de marchandises vendues", Class: 6, Type: model.AccountTypeExpense},
		{Code: "613000", Label: "Locations", Class: 6, Type: model.AccountTypeExpense},
		{Code: "631000", Label: "Rémunérations du personnel", Class: 6, Type: model.AccountTypeExpense},
		{Code: "644000", Label: "Droits de timbre", Class: 6, Type: model.AccountTypeExpense},
		{Code: "681000", Label: "Dotations aux amortissements", Class: 6, Type: model.AccountTypeExpense},

		{Code: "700000", Label: "Ventes de marchandises", Class: 7, Type: model.AccountTypeRevenue},
		{Code: "706000", Label: "Prestations de services", Class: 7, Type: model.AccountTypeRevenue},
		{Code: "752000", Label: "Plus-values sur cession d'immobilisations", Class: 7, Type: model.AccountTypeRevenue},
	}
}

// DefaultJournals returns the standard journal set.
func DefaultJournals() []model.Journal {
	return []model.Journal{
		{Code: "ACH", Label: "Achats", Nature: model.JournalNaturePurchase},
		{Code: "VTE", Label: "Ventes", Nature: model.JournalNatureSale},
		{Code: "BNQ", Label: "Banque", Nature: model.JournalNatureBank},
		{Code: "CAI", Label: "Caisse", Nature: model.JournalNatureCash, PrincipalAccount: "531000"},
		{Code: "OD", Label: "Opérations Diverses", Nature: model.JournalNatureMisc},
		{Code: "RAN", Label: "Report à Nouveau", Nature: model.JournalNatureOpening},
	}
}

// DefaultAuxiliaries returns a sample supplier and customer.
func DefaultAuxiliaries() []model.Auxiliary {
	return []model.Auxiliary{
		{Code: "F001", Label: "Fournisseur Général", Type: model.AuxiliaryTypeSupplier},
		{Code: "CL001", Label: "Client Alpha", Type: model.AuxiliaryTypeCustomer},
	}
}
