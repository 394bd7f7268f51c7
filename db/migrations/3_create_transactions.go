package migrations

import "github.com/go-rel/rel"

func MigrateCreateTransactions(schema *rel.Schema) {
	schema.CreateTable("transactions", func(t *rel.Table) {
		t.ID("id")
		t.String("terms_uri")
		t.String("action")
		t.Text("terms")
		t.DateTime("created_at")
	})
	schema.CreateIndex("transactions", "transactions_terms_uri_idx", []string{"terms_uri"})
}

func RollbackCreateTransactions(schema *rel.Schema) {
	schema.DropTable("transactions")
}
