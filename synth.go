package main

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
)

// Synthesizer produces candidate items for one slot, oversubscribed.
// Implementations must be deterministic given (slot identity, seed).
type Synthesizer interface {
	Synthesize(slot Slot, variants int, seed int64) ([]Item, error)
}

// templateSynthesizer writes specs from the archetype-kit table and
// wording banks. All randomness is scoped to rand.Rand instances seeded
// per section from the derived variant seed, so no shared generator
// state leaks between sections or variants.
type templateSynthesizer struct {
	kits KitTable
}

func NewTemplateSynthesizer(kits KitTable) Synthesizer {
	return &templateSynthesizer{kits: kits}
}

const aclSnippet = `### Access Control

- **Member**: may ` + "`read:self`" + ` and ` + "`write:self`" + ` on their own records.
- **Admin**: may ` + "`read:any`" + `, ` + "`write:any`" + `, and ` + "`manage`" + ` application settings.`

var wordingBanks = struct {
	visions        []string
	techIntros     []string
	modelIntros    []string
	routeIntros    []string
	featureIntros  []string
	nfrIntros      []string
	frontends      []string
	backends       []string
	databases      []string
	deployments    []string
	nfrCategories  map[string][]string
	padSubjects    []string
	padVerbs       []string
	padObjects     []string
	padTails       []string
	archetypeBlurb map[string]string
}{
	visions: []string{
		"A focused, friendly tool",
		"A streamlined everyday workspace",
		"A dependable small application",
		"A simple, fast utility",
	},
	techIntros: []string{
		"The build uses a deliberately small set of technologies:",
		"Technology choices favor simplicity and fast iteration:",
		"The stack is chosen for clarity over novelty:",
	},
	modelIntros: []string{
		"The data layer is organized around these records:",
		"Core entities and their fields:",
		"Persistence is structured as follows:",
	},
	routeIntros: []string{
		"The application exposes these pages:",
		"Navigation covers the following views:",
		"Users move between these screens:",
	},
	featureIntros: []string{
		"Planned capabilities, in priority order:",
		"The feature set for this release:",
		"Scope for the initial build:",
	},
	nfrIntros: []string{
		"Non-functional requirements and objectives:",
		"Quality targets the build must meet:",
		"Operational expectations:",
	},
	frontends: []string{"React with Vite", "Vue 3", "Svelte", "plain HTML, CSS, and JavaScript"},
	backends:  []string{"Node.js with Express", "Python with Flask", "Go with the standard library"},
	databases: []string{"SQLite", "PostgreSQL"},
	deployments: []string{
		"Replit autoscale deployment",
		"Replit reserved VM deployment",
	},
	nfrCategories: map[string][]string{
		"performance": {
			"Initial page load completes under 2 seconds on a cold cache.",
			"Interactive actions respond within 150 milliseconds.",
			"Shipped assets stay under 500 KB gzipped.",
			"List views paginate at 50 records to keep rendering cheap.",
		},
		"security": {
			"Passwords are stored as salted hashes, never in plain text.",
			"All form input is validated and escaped before rendering.",
			"Session tokens expire after 24 hours of inactivity.",
			"Role checks run on every mutating action.",
		},
		"reliability": {
			"User data is backed up automatically every day.",
			"The app degrades gracefully when the database is unavailable.",
			"Transient failures retry with exponential backoff.",
			"No more than 0.1% of operations may fail in a month.",
		},
		"usability": {
			"The layout is mobile-first and fully responsive.",
			"Every interactive element is reachable by keyboard.",
			"Color contrast meets WCAG 2.1 AA.",
			"Empty states explain what to do next.",
		},
		"maintainability": {
			"Local setup is a single command.",
			"Lint and tests run on every push.",
			"Risky changes ship behind feature flags.",
			"Schema migrations are versioned and reversible.",
		},
	},
	padSubjects: []string{
		"The onboarding tour",
		"The settings panel",
		"The export flow",
		"The activity log",
		"The search experience",
		"The notification layer",
		"The draft autosave behavior",
		"The bulk edit workflow",
		"The seed data set",
		"The empty-state copy",
		"The keyboard shortcut scheme",
		"The retention policy",
		"The feedback widget",
		"The audit trail",
	},
	padVerbs: []string{
		"is reviewed with a small pilot group before",
		"is documented alongside the code and refreshed during",
		"stays deliberately minimal throughout",
		"gets a dedicated accessibility pass ahead of",
		"is exercised by an automated checklist prior to",
		"is measured against the quality targets during",
		"collects structured feedback across",
		"is revisited with fresh usability notes after",
	},
	padObjects: []string{
		"each public release.",
		"every milestone review.",
		"the first three iterations.",
		"the quarterly planning cycle.",
		"each round of user interviews.",
		"the initial rollout window.",
		"every schema change.",
		"the closing week of a cycle.",
	},
	padTails: []string{
		"Findings land in the shared decision log with an owner and a date.",
		"Anything ambiguous is resolved in favor of the simpler behavior.",
		"Regressions found here block the release until addressed.",
		"Notes from this step feed the next planning discussion directly.",
		"The outcome is summarized in one paragraph for the changelog.",
		"Follow-up work is filed immediately rather than batched.",
		"Disagreements escalate to a short written proposal, not a meeting.",
		"Metrics from this step are kept for a full year of comparisons.",
	},
	archetypeBlurb: map[string]string{
		"blog":      "create, publish, and manage blog content with ease.",
		"guestbook": "leave messages, comments, and interact with site visitors.",
		"chat":      "communicate in real time with other users in a structured environment.",
		"notes":     "create, organize, and retrieve personal notes efficiently.",
		"dashboard": "visualize and analyze key metrics and data points.",
		"store":     "browse products, manage a shopping cart, and complete purchases.",
		"gallery":   "showcase and organize visual content in an appealing way.",
	},
}

// Synthesize writes `variants` spec variants for the slot, each padded
// or trimmed into the band the slot position targets.
func (ts *templateSynthesizer) Synthesize(slot Slot, variants int, seed int64) ([]Item, error) {
	kit, ok := ts.kits[slot.Archetype][slot.Complexity]
	if !ok {
		return nil, fmt.Errorf("no kit for %s/%s", slot.Archetype, slot.Complexity)
	}
	targetBand := stratumBandScheme(slot.Rep-1, stratumQuota)

	items := make([]Item, 0, variants)
	for v := 1; v <= variants; v++ {
		vseed := VariantSeed(seed, slot.SlotID, v)
		spec := ts.writeSpec(slot, kit, vseed, targetBand)

		var bind *string
		if kit.Server {
			addr := "0.0.0.0"
			bind = &addr
		}
		items = append(items, Item{
			SlotID:      slot.SlotID,
			CandidateID: FormatCandidateID(slot.SlotID, v),
			Archetype:   slot.Archetype,
			Complexity:  slot.Complexity,
			Locale:      slot.Locale,
			Platform:    Platform{Name: slot.Platform, Server: kit.Server, Bind: bind},
			Rep:         slot.Rep,
			Seq:         slot.Seq,
			LengthBand:  targetBand,
			Spec:        spec,
		})
	}
	return items, nil
}

func (ts *templateSynthesizer) writeSpec(slot Slot, kit ArchetypeKit, seed int64, targetBand string) string {
	sections := []string{
		visionSection(seed+1, slot.Archetype, slot.Complexity),
		techStackSection(seed+2, kit),
		dataModelsSection(seed+3, slot.Archetype, slot.Complexity),
		pagesSection(seed+4, kit),
		featurePlanSection(seed+5, kit),
		nfrSection(seed + 6),
	}
	// Process notes give each variant a body of its own even when the
	// kit-driven bullets are identical, so sibling variants stay well
	// below the duplicate threshold.
	rng := rand.New(rand.NewSource(seed + 8))
	for i := 0; i < processNotesPerSpec; i++ {
		idx := i % len(sections)
		sections[idx] = strings.TrimRight(sections[idx], "\n") + "\n\n" + padSentence(rng)
	}
	spec := strings.Join(sections, "\n\n")
	return adjustLengthToBand(spec, targetBand, seed+7)
}

const processNotesPerSpec = 6

func pick(rng *rand.Rand, options []string) string {
	return options[rng.Intn(len(options))]
}

func visionSection(seed int64, archetype, complexity string) string {
	rng := rand.New(rand.NewSource(seed))
	var b strings.Builder
	fmt.Fprintf(&b, "## Vision\n\n")
	fmt.Fprintf(&b, "%s for %s management.\n\n", pick(rng, wordingBanks.visions), archetype)
	fmt.Fprintf(&b, "This %s %s application will provide users with a streamlined way to %s",
		complexity, archetype, wordingBanks.archetypeBlurb[archetype])
	if complexity == "MVP" {
		b.WriteString("\n\nThe initial version focuses on core functionality while maintaining a clean, intuitive interface.")
	} else {
		b.WriteString("\n\nThis professional version includes advanced capabilities, robust safeguards, and an enhanced user experience.")
	}
	return b.String()
}

func techStackSection(seed int64, kit ArchetypeKit) string {
	rng := rand.New(rand.NewSource(seed))
	var b strings.Builder
	fmt.Fprintf(&b, "## Tech Stack\n\n%s\n\n", pick(rng, wordingBanks.techIntros))
	fmt.Fprintf(&b, "- **Frontend**: %s\n", pick(rng, wordingBanks.frontends))
	if kit.Server {
		fmt.Fprintf(&b, "- **Backend**: %s\n", pick(rng, wordingBanks.backends))
		fmt.Fprintf(&b, "- **Database**: %s\n", pick(rng, wordingBanks.databases))
	}
	fmt.Fprintf(&b, "- **Deployment**: %s\n", pick(rng, wordingBanks.deployments))
	if kit.Server {
		b.WriteString("- **Hosting**: Replit with server binding to 0.0.0.0")
	} else {
		b.WriteString("- **Hosting**: Replit static site hosting")
	}
	return b.String()
}

// Data model lines per archetype; Pro builds on the base set except
// where the original scheme replaces it outright.
var baseModels = map[string][]string{
	"blog":      {"**User**: id, username, email, password_hash, created_at", "**Post**: id, title, content, author_id, created_at, updated_at", "**Comment**: id, post_id, author_id, content, created_at"},
	"guestbook": {"**Entry**: id, author_name, email, content, created_at"},
	"chat":      {"**User**: id, username, email, password_hash, created_at, last_active", "**Message**: id, sender_id, content, created_at"},
	"notes":     {"**Note**: id, title, content, created_at, updated_at"},
	"dashboard": {"**User**: id, username, email, password_hash, created_at", "**Dashboard**: id, user_id, name, layout, created_at", "**Widget**: id, dashboard_id, type, data_source, position, size"},
	"store":     {"**Product**: id, name, description, price, image_url, stock", "**Cart**: id, session_id, created_at", "**CartItem**: id, cart_id, product_id, quantity", "**Order**: id, customer_name, email, address, status, created_at"},
	"gallery":   {"**Image**: id, title, description, url, created_at", "**Tag**: id, name", "**ImageTag**: image_id, tag_id"},
}

var proModels = map[string][]string{
	"blog":      {"**Category**: id, name, description", "**Tag**: id, name", "**PostTag**: post_id, tag_id"},
	"guestbook": {"**User**: id, username, email, password_hash, created_at", "**Media**: id, entry_id, url, type, created_at"},
	"chat":      {"**Room**: id, name, description, created_at", "**RoomMember**: room_id, user_id, joined_at", "**DirectMessage**: id, sender_id, recipient_id, content, created_at"},
	"dashboard": {"**DataSource**: id, name, connection_string, query, refresh_rate", "**Report**: id, user_id, name, description, query, created_at"},
	"store":     {"**User**: id, username, email, password_hash, created_at", "**Category**: id, name, description", "**ProductCategory**: product_id, category_id", "**Payment**: id, order_id, amount, provider, status, created_at"},
}

// Archetypes whose Pro data model replaces the MVP set instead of
// extending it.
var proReplacesModels = map[string][]string{
	"notes":   {"**User**: id, username, email, password_hash, created_at", "**Note**: id, user_id, title, content, created_at, updated_at", "**Category**: id, user_id, name", "**NoteCategory**: note_id, category_id"},
	"gallery": {"**User**: id, username, email, password_hash, created_at", "**Image**: id, user_id, title, description, url, created_at", "**Collection**: id, user_id, name, description, created_at", "**CollectionImage**: collection_id, image_id", "**Comment**: id, image_id, user_id, content, created_at"},
}

func dataModelsSection(seed int64, archetype, complexity string) string {
	rng := rand.New(rand.NewSource(seed))
	models := baseModels[archetype]
	if complexity == "Pro" {
		if replacement, ok := proReplacesModels[archetype]; ok {
			models = replacement
		} else {
			models = append(append([]string(nil), models...), proModels[archetype]...)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Data Models\n\n%s\n\n", pick(rng, wordingBanks.modelIntros))
	for _, m := range models {
		fmt.Fprintf(&b, "- %s\n", m)
	}
	return strings.TrimRight(b.String(), "\n")
}

var pageDescriptions = map[string]string{
	"Post Detail":        "Displays a single blog post with comments",
	"About":              "Information about the site and its authors",
	"Author Profiles":    "Details about each author",
	"Categories":         "Browse content by category",
	"Search":             "Search by keyword",
	"Admin Dashboard":    "Manage content and settings",
	"Entry Form":         "Form for submitting new guestbook entries",
	"User Profiles":      "View user profile information",
	"Admin Panel":        "Moderate entries and manage users",
	"Chat Room":          "Main chat interface",
	"Login":              "User authentication page",
	"Chat Rooms":         "List of available chat rooms",
	"Direct Messages":    "Private conversations between users",
	"Settings":           "User preferences and account settings",
	"Notes List":         "Overview of all notes",
	"Note Editor":        "Create and edit notes",
	"Sync Status":        "View synchronization status",
	"Overview":           "Main dashboard view",
	"Data View":          "Detailed data visualization",
	"Detailed Analytics": "In-depth data analysis",
	"Reports":            "Generated reports and exports",
	"User Management":    "Manage user accounts and permissions",
	"System Settings":    "Configure application parameters",
	"Product List":       "Browse available products",
	"Product Detail":     "View detailed product information",
	"Cart":               "Review items before checkout",
	"Checkout":           "Complete purchase process",
	"Product Categories": "Browse products by category",
	"User Account":       "Manage account details",
	"Order History":      "View past orders",
	"Gallery Grid":       "Grid layout of images",
	"Image View":         "Detailed view of a single image",
	"Image Detail":       "Expanded image with metadata",
	"Collections":        "Grouped sets of images",
	"Upload":             "Add new images to the gallery",
}

func pagesSection(seed int64, kit ArchetypeKit) string {
	rng := rand.New(rand.NewSource(seed))
	var b strings.Builder
	fmt.Fprintf(&b, "## Pages & Routes\n\n%s\n\n", pick(rng, wordingBanks.routeIntros))
	for _, page := range kit.Pages {
		if page == "Home" {
			b.WriteString("- **Home**: `/` - The main landing page\n")
			continue
		}
		route := strings.ToLower(strings.ReplaceAll(page, " ", "-"))
		desc, ok := pageDescriptions[page]
		if !ok {
			desc = page + " page"
		}
		fmt.Fprintf(&b, "- **%s**: `/%s` - %s\n", page, route, desc)
	}
	return strings.TrimRight(b.String(), "\n")
}

func featurePlanSection(seed int64, kit ArchetypeKit) string {
	rng := rand.New(rand.NewSource(seed))
	var b strings.Builder
	fmt.Fprintf(&b, "## Feature Plan\n\n%s\n\n", pick(rng, wordingBanks.featureIntros))
	for _, f := range kit.Features {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	b.WriteString("\n" + aclSnippet)
	return b.String()
}

func nfrSection(seed int64) string {
	rng := rand.New(rand.NewSource(seed))
	var b strings.Builder
	fmt.Fprintf(&b, "## NFR & SLOs\n\n%s\n", pick(rng, wordingBanks.nfrIntros))
	for _, category := range []string{"performance", "security", "reliability", "usability", "maintainability"} {
		fmt.Fprintf(&b, "\n**%s%s:**\n", strings.ToUpper(category[:1]), category[1:])
		options := wordingBanks.nfrCategories[category]
		for _, i := range rng.Perm(len(options))[:2] {
			fmt.Fprintf(&b, "- %s\n", options[i])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// adjustLengthToBand pads or trims a spec until its token count falls
// inside the target band. Padding sentences attach to section ends in
// rotation; trimming removes interior sentences only, preserving each
// section's opening and closing lines and the ACL block.
func adjustLengthToBand(spec, targetBand string, seed int64) string {
	r := bandRanges[targetBand]
	count := CountTokens(spec)
	if count >= r.Min && count <= r.Max {
		return spec
	}
	rng := rand.New(rand.NewSource(seed))
	if count < r.Min {
		return padSpec(spec, r.Min, rng)
	}
	return trimSpec(spec, r.Max, rng)
}

var sectionSplitRe = regexp.MustCompile(`(?m)^## `)

func splitSections(spec string) (header string, sections []string) {
	parts := sectionSplitRe.Split(spec, -1)
	if len(parts) == 0 {
		return spec, nil
	}
	return parts[0], parts[1:]
}

func joinSections(header string, sections []string) string {
	return header + "## " + strings.Join(sections, "\n\n## ")
}

// padSentence composes process-note filler from the four padding banks.
// The combination space is large enough that two variants of the same
// slot rarely produce the same sentence, which keeps their shingle
// overlap low.
func padSentence(rng *rand.Rand) string {
	return fmt.Sprintf("%s %s %s %s",
		pick(rng, wordingBanks.padSubjects),
		pick(rng, wordingBanks.padVerbs),
		pick(rng, wordingBanks.padObjects),
		pick(rng, wordingBanks.padTails))
}

func padSpec(spec string, minTokens int, rng *rand.Rand) string {
	header, sections := splitSections(spec)
	if len(sections) == 0 {
		return spec
	}
	section := 0
	for CountTokens(joinSections(header, sections)) < minTokens {
		sections[section] = strings.TrimRight(sections[section], "\n") + "\n\n" + padSentence(rng)
		section = (section + 1) % len(sections)
	}
	return joinSections(header, sections)
}

func trimSpec(spec string, maxTokens int, rng *rand.Rand) string {
	header, sections := splitSections(spec)
	for si := range sections {
		if CountTokens(joinSections(header, sections)) <= maxTokens {
			break
		}
		if strings.Contains(sections[si], aclLabel) {
			continue
		}
		lines := strings.Split(sections[si], "\n")
		if len(lines) <= 4 {
			continue
		}
		// Drop interior lines at random until this section alone cannot
		// give back any more tokens.
		for _, offset := range rng.Perm(len(lines) - 4) {
			if CountTokens(joinSections(header, sections)) <= maxTokens {
				break
			}
			idx := offset + 2
			if strings.TrimSpace(lines[idx]) == "" {
				continue
			}
			// The bind-address line is load-bearing for server specs.
			if strings.Contains(lines[idx], "0.0.0.0") {
				continue
			}
			lines[idx] = ""
			sections[si] = strings.Join(lines, "\n")
		}
	}
	return joinSections(header, sections)
}

func defaultKitTable() KitTable {
	return KitTable{
		"blog": {
			"MVP": {
				Server: false,
				Pages:  []string{"Home", "Post Detail", "About"},
				Features: []string{
					"Write and publish posts in Markdown",
					"Reverse-chronological home feed",
					"Reader comments on each post",
					"Simple about page with author bio",
				},
			},
			"Pro": {
				Server: true,
				Pages:  []string{"Home", "Post Detail", "Author Profiles", "Categories", "Search", "Admin Dashboard"},
				Features: []string{
					"Write and publish posts in Markdown with scheduling",
					"Category and tag organization for posts",
					"Full-text search across titles and bodies",
					"Author profiles with post history",
					"Moderated comments with spam filtering",
					"Admin dashboard for content management",
				},
			},
		},
		"guestbook": {
			"MVP": {
				Server: true,
				Pages:  []string{"Home", "Entry Form"},
				Features: []string{
					"Leave a signed message for the site owner",
					"Entries shown newest first",
					"Basic length and content checks on submission",
				},
			},
			"Pro": {
				Server: true,
				Pages:  []string{"Home", "Entry Form", "User Profiles", "Admin Panel"},
				Features: []string{
					"Registered users can sign entries with their profile",
					"Photo attachments on entries",
					"Admin moderation queue for new entries",
					"Per-user entry history",
					"Emoji reactions on entries",
				},
			},
		},
		"chat": {
			"MVP": {
				Server: true,
				Pages:  []string{"Home", "Chat Room", "Login"},
				Features: []string{
					"Single shared room for all users",
					"Message history on join",
					"Simple username-based login",
					"Typing indicator",
				},
			},
			"Pro": {
				Server: true,
				Pages:  []string{"Home", "Chat Rooms", "Direct Messages", "Settings", "Login"},
				Features: []string{
					"Multiple named rooms with membership",
					"One-to-one direct messages",
					"Unread counts and mention highlights",
					"Message editing and deletion windows",
					"Per-room notification preferences",
					"Profile avatars and display names",
				},
			},
		},
		"notes": {
			"MVP": {
				Server: false,
				Pages:  []string{"Home", "Notes List", "Note Editor"},
				Features: []string{
					"Create, edit, and delete plain-text notes",
					"Notes persist in browser storage",
					"Instant filter of the notes list by title",
				},
			},
			"Pro": {
				Server: true,
				Pages:  []string{"Home", "Notes List", "Note Editor", "Categories", "Sync Status", "Settings"},
				Features: []string{
					"Accounts with cross-device note sync",
					"Categories and multi-category assignment",
					"Rich text with checklists and headings",
					"Full-text search across all notes",
					"Pinned notes and archive",
					"Conflict indicator when two devices edit one note",
				},
			},
		},
		"dashboard": {
			"MVP": {
				Server: true,
				Pages:  []string{"Home", "Overview", "Data View"},
				Features: []string{
					"Overview page with key metric tiles",
					"Tabular data view with sorting",
					"Manual refresh of displayed data",
				},
			},
			"Pro": {
				Server: true,
				Pages:  []string{"Home", "Overview", "Detailed Analytics", "Reports", "User Management", "System Settings"},
				Features: []string{
					"Configurable widget layout per user",
					"Multiple data sources with scheduled refresh",
					"Saved reports with CSV export",
					"Drill-down charts on every metric tile",
					"User accounts with role-based access",
					"Alert thresholds on chosen metrics",
				},
			},
		},
		"store": {
			"MVP": {
				Server: true,
				Pages:  []string{"Home", "Product List", "Product Detail", "Cart", "Checkout"},
				Features: []string{
					"Browse the product catalog",
					"Session-based shopping cart",
					"Guest checkout with email confirmation",
					"Stock tracking per product",
				},
			},
			"Pro": {
				Server: true,
				Pages:  []string{"Home", "Product List", "Product Detail", "Product Categories", "Cart", "Checkout", "User Account", "Order History"},
				Features: []string{
					"Category browsing and product search",
					"Customer accounts with saved addresses",
					"Order history and status tracking",
					"Payment provider integration",
					"Inventory alerts for low stock",
					"Discount codes at checkout",
				},
			},
		},
		"gallery": {
			"MVP": {
				Server: false,
				Pages:  []string{"Home", "Gallery Grid", "Image View"},
				Features: []string{
					"Responsive grid of images",
					"Lightbox view for a single image",
					"Tag labels under each image",
				},
			},
			"Pro": {
				Server: true,
				Pages:  []string{"Home", "Gallery Grid", "Image Detail", "Collections", "Upload"},
				Features: []string{
					"User uploads with automatic thumbnails",
					"Named collections for grouping images",
					"Comments on individual images",
					"Image metadata display",
					"Share links for collections",
				},
			},
		},
	}
}
