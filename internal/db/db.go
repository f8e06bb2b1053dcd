package db

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Conn *pgxpool.Pool

// Init connects to Postgres and ensures the schema pieces the handlers
// rely on.
func Init() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s",
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_HOST"),
			os.Getenv("DB_PORT"),
			os.Getenv("DB_NAME"),
		)
	}

	var err error
	Conn, err = pgxpool.New(context.Background(), dsn)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}

	if err = Conn.Ping(context.Background()); err != nil {
		log.Fatalf("Unable to ping database: %v\n", err)
	}

	log.Println("Connected to Postgres successfully")

	ensureUsersTable()
	ensureConversationsTable()
	ensureListingsTable()
	ensureOrdersSchema()
	ensureMilestonesTable()
	ensureContractUsageTable()
	ensureMessagesTable()
	ensureRoomsTable()
	ensureNotificationsTable()
	ensurePayoutsTable()
	ensureDisputesTable()
}

func ensureUsersTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS users (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            name TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'client' CHECK (role IN ('client','provider','admin')),
            bio TEXT,
            avatar_url TEXT,
            payout_account_id TEXT,
            is_active BOOLEAN DEFAULT TRUE,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        )`)
	if err != nil {
		log.Printf("failed to ensure users table: %v", err)
	}
}

func ensureConversationsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS conversations (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            client_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            provider_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            UNIQUE (client_id, provider_id)
        )`)
	if err != nil {
		log.Printf("failed to ensure conversations table: %v", err)
	}
}

func ensureListingsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS listings (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            provider_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            title TEXT NOT NULL,
            description TEXT,
            base_price NUMERIC(12,2) NOT NULL,
            add_ons JSONB NOT NULL DEFAULT '[]',
            category TEXT,
            delivery_time_days INTEGER,
            status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active','paused','removed')),
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_listings_provider ON listings(provider_id);
    `)
	if err != nil {
		log.Printf("failed to ensure listings table: %v", err)
	}
}

// ensureOrdersSchema keeps the status constraint in lockstep with the
// engine's transition table.
func ensureOrdersSchema() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS orders (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            kind TEXT NOT NULL CHECK (kind IN ('direct','milestone','service')),
            conversation_id UUID REFERENCES conversations(id) ON DELETE SET NULL,
            listing_id UUID REFERENCES listings(id) ON DELETE SET NULL,
            client_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            provider_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            title TEXT NOT NULL,
            amount NUMERIC(12,2) NOT NULL,
            price_type TEXT CHECK (price_type IN ('fixed','hourly','milestone')),
            package_name TEXT,
            add_ons JSONB NOT NULL DEFAULT '[]',
            status TEXT NOT NULL DEFAULT 'pending',
            deliverable_url TEXT,
            review_score DOUBLE PRECISION,
            review_text TEXT,
            tip NUMERIC(12,2) NOT NULL DEFAULT 0,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_orders_client ON orders(client_id);
        CREATE INDEX IF NOT EXISTS idx_orders_provider ON orders(provider_id);
        CREATE INDEX IF NOT EXISTS idx_orders_conversation ON orders(conversation_id);
    `)
	if err != nil {
		log.Printf("failed to ensure orders table: %v", err)
	}

	_, _ = Conn.Exec(ctx, `ALTER TABLE orders DROP CONSTRAINT IF EXISTS orders_status_check`)
	_, err = Conn.Exec(ctx, `
        ALTER TABLE orders
        ADD CONSTRAINT orders_status_check
        CHECK (status IN ('pending','accepted','rejected','submitted','approved'))`)
	if err != nil {
		log.Printf("failed to update orders status constraint: %v", err)
	}
}

func ensureMilestonesTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS milestones (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
            title TEXT NOT NULL,
            amount NUMERIC(12,2) NOT NULL,
            due_date TIMESTAMP WITH TIME ZONE,
            status TEXT NOT NULL DEFAULT 'pending'
                CHECK (status IN ('pending','submitted','approved')),
            deliverable_url TEXT,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_milestones_order ON milestones(order_id);
    `)
	if err != nil {
		log.Printf("failed to ensure milestones table: %v", err)
	}
}

// ensureContractUsageTable holds the linked contract-tool usage record
// flipped alongside offer acceptance, rejection and approval.
func ensureContractUsageTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS contract_usage (
            order_id UUID PRIMARY KEY REFERENCES orders(id) ON DELETE CASCADE,
            state TEXT NOT NULL CHECK (state IN ('pending','rejected','completed')),
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        )`)
	if err != nil {
		log.Printf("failed to ensure contract_usage table: %v", err)
	}
}

func ensureMessagesTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS messages (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            sender_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            recipient_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            content TEXT NOT NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            read_at TIMESTAMP WITH TIME ZONE NULL
        );
        CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(recipient_id) WHERE read_at IS NULL;
    `)
	if err != nil {
		log.Printf("failed to ensure messages table: %v", err)
	}
}

func ensureRoomsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS rooms (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            host_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            title TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'scheduled' CHECK (status IN ('scheduled','live','ended')),
            scheduled_at TIMESTAMP WITH TIME ZONE,
            started_at TIMESTAMP WITH TIME ZONE NULL,
            ended_at TIMESTAMP WITH TIME ZONE NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_rooms_conversation ON rooms(conversation_id);
    `)
	if err != nil {
		log.Printf("failed to ensure rooms table: %v", err)
	}
}

func ensureNotificationsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS notifications (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            type TEXT NOT NULL,
            title TEXT NOT NULL,
            body TEXT,
            reference TEXT NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            read_at TIMESTAMP WITH TIME ZONE NULL
        );
        CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_notifications_user_unread ON notifications(user_id) WHERE read_at IS NULL;
    `)
	if err != nil {
		log.Printf("failed to ensure notifications table: %v", err)
	}
}

// ensurePayoutsTable records every gateway release so support and the
// admin reconcile path can line payments up with order status.
func ensurePayoutsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS payouts (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            account_id TEXT NOT NULL,
            amount NUMERIC(12,2) NOT NULL,
            reference TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'released' CHECK (status IN ('released','failed')),
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_payouts_reference ON payouts(reference);
        CREATE INDEX IF NOT EXISTS idx_payouts_account ON payouts(account_id);
    `)
	if err != nil {
		log.Printf("failed to ensure payouts table: %v", err)
	}
}

func ensureDisputesTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS disputes (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
            filer_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            reason TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open','resolved')),
            resolution TEXT NULL CHECK (resolution IN ('refund','release','none')),
            notes TEXT NULL,
            resolved_by UUID NULL REFERENCES users(id) ON DELETE SET NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            resolved_at TIMESTAMP WITH TIME ZONE NULL
        );
        CREATE INDEX IF NOT EXISTS idx_disputes_order ON disputes(order_id);
        CREATE INDEX IF NOT EXISTS idx_disputes_status ON disputes(status);
    `)
	if err != nil {
		log.Printf("failed to ensure disputes table: %v", err)
	}
}
