package migrations

import "github.com/go-rel/rel"

func MigrateCreateContracts(schema *rel.Schema) {
	schema.CreateTable("contracts", func(t *rel.Table) {
		t.ID("id")
		t.String("uri")
		t.String("owner")
		t.String("name")
		t.String("subtitle")
		t.Text("description")
		t.Text("reason_for_accessing")
		t.Text("image")
		t.String("body_uri")
		t.DateTime("expires_at")
	})
	schema.CreateUniqueIndex("contracts", "contracts_uri_uidx", []string{"uri"})
	schema.CreateIndex("contracts", "contracts_owner_idx", []string{"owner"})
}

func RollbackCreateContracts(schema *rel.Schema) {
	schema.DropTable("contracts")
}
