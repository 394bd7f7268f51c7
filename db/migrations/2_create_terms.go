package migrations

import "github.com/go-rel/rel"

func MigrateCreateTerms(schema *rel.Schema) {
	schema.CreateTable("terms", func(t *rel.Table) {
		t.ID("id")
		t.String("uri")
		t.String("contract_uri")
		t.String("profile")
		t.Text("terms")
		t.String("status")
		t.DateTime("expires_at")
	})
	schema.CreateUniqueIndex("terms", "terms_uri_uidx", []string{"uri"})
	// the uniqueness invariant: one terms record per (contract, profile)
	schema.CreateUniqueIndex("terms", "terms_contract_profile_uidx", []string{"contract_uri", "profile"})
	schema.CreateIndex("terms", "terms_profile_idx", []string{"profile"})
}

func RollbackCreateTerms(schema *rel.Schema) {
	schema.DropTable("terms")
}
